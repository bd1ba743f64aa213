package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/nekgo/nekhttp/internal/request"
	"github.com/nekgo/nekhttp/internal/response"
	"github.com/nekgo/nekhttp/internal/server"
)

func main() {
	port := flag.Int("port", 3000, "port to listen on")
	path := flag.String("path", ".", "directory containing index.html")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	html, err := os.ReadFile(filepath.Join(*path, "index.html"))
	if err != nil {
		log.Fatal().Err(err).Msg("reading index.html")
	}
	page := string(html)

	// Visit counter; handlers run on the single accept-loop goroutine, so
	// plain state is safe.
	count := 0

	srv := server.New(server.WithLogger(log))
	srv.Get("/", func(r *request.Request, w *response.Writer) {
		log.Info().Str("method", r.Method).Str("path", r.Path).Msg("request")
		body := page
		if i := strings.Index(body, "{}"); i >= 0 {
			body = body[:i] + strconv.Itoa(count) + body[i+2:]
			count++
		}
		if err := w.Send([]byte(body)); err != nil {
			log.Error().Err(err).Msg("sending response")
		}
	})

	if err := srv.Listen(*port); err != nil {
		log.Fatal().Err(err).Msg("starting server")
	}
	defer srv.Close()
	log.Info().Int("port", *port).Msg("server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("server stopped")
}
