package main

import (
	"log"
	"time"

	"evlink/internal"
	"evlink/internal/config"
	"evlink/metrics"
	"evlink/server"
	"evlink/station"
)

func main() {

	conf, err := config.GetConfig()
	if err != nil {
		log.Println("configuration failed;", err)
		return
	}

	go func() {
		if err := metrics.Listen(conf); err != nil {
			log.Println("metrics server failed;", err)
		}
	}()

	if conf.Station.Enabled {
		logService := internal.NewLogger(time.UTC)
		if conf.IsDebug != nil {
			logService.SetDebugMode(*conf.IsDebug)
		}
		chargePoint := station.NewStation(conf, logService)
		if err = chargePoint.Start(); err != nil {
			log.Println("station failed;", err)
		}
		return
	}

	centralSystem, err := server.NewCentralSystem(conf)
	if err != nil {
		log.Println("central system initialization failed;", err)
		return
	}
	centralSystem.Start()

}
