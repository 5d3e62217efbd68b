package utility

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ToInt converts a string to an integer, tolerating a decimal part
func ToInt(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fmt.Println(err)
		return 0
	}
	return int(f)
}

func NewUUID() string {
	return uuid.New().String()
}
