// reqdump accepts TCP connections and prints each parsed request, which is
// handy for poking at the parser with curl or netcat.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/nekgo/nekhttp/internal/conn"
	"github.com/nekgo/nekhttp/internal/request"
)

func main() {
	port := flag.Int("port", 3000, "port to listen on")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	c := conn.New(*port)
	if err := c.Listen(); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	defer c.Close()
	log.Info().Int("port", *port).Msg("listening")

	for {
		if err := c.Accept(); err != nil {
			log.Fatal().Err(err).Msg("accept")
		}
		r, err := request.RequestFromReader(c)
		if err != nil {
			log.Warn().Err(err).Msg("bad request")
			c.ClosePeer()
			continue
		}
		ev := log.Info().
			Str("method", r.Method).
			Str("path", r.Path).
			Str("target", r.OriginalTarget).
			Str("proto", r.Proto+"/"+r.ProtoVersion).
			Str("host", r.Host)
		for k, v := range r.Headers {
			ev = ev.Str("hdr."+k, v)
		}
		ev.Int("body_bytes", len(r.Body)).Msg("request")
		c.ClosePeer()
	}
}
