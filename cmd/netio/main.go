package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netio"
)

var config *netio.EventLoopConfig
var bindAddr string

func init() {
	configFilePath := flag.String("c", "", "path to configuration file (toml or yaml); defaults built in if empty.")
	flag.StringVar(&bindAddr, "bind", "0.0.0.0:0", "address for a single demo UDP receiver.")
	flag.Parse()

	if *configFilePath != "" {
		c, err := netio.LoadConfig(*configFilePath)
		if err != nil {
			log.Fatal().Msgf("can't load config %s: %+v", *configFilePath, err)
		}
		config = c
	} else {
		c := netio.DefaultEventLoopConfig("netio")
		config = &c
	}
	initLog(config)
}

func initLog(config *netio.EventLoopConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(config.Global.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	log.Info().Msgf("starting %s event loop...", config.Name)

	loop := netio.NewEventLoop(*config)
	if !loop.Valid() {
		log.Fatal().Msg("event loop construction failed")
	}
	defer func() {
		if err := loop.Close(); err != nil {
			log.Error().Msgf("event loop close: %+v", err)
		}
	}()

	bindUDPAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		log.Fatal().Msgf("can't parse bind address: %+v", err)
	}

	writer := netio.PacketWriterFunc(func(data []byte, addr *net.UDPAddr) error {
		log.Debug().Msgf("received %d bytes from %s", len(data), addr)
		return nil
	})

	handle := loop.AddUDPReceiver(&netio.UDPReceiverConfig{BindAddress: bindUDPAddr}, writer)
	if handle == nil {
		log.Fatal().Msg("can't bind receiver")
	}
	log.Info().Msgf("listening on %s", handle.Address())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down...")
}
