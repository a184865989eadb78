package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jyothri/gmailfeed/collect"
	"github.com/jyothri/gmailfeed/constants"
	"github.com/jyothri/gmailfeed/db"
	"github.com/jyothri/gmailfeed/web"
)

func init() {
	options := &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.999"))
			}
			return a
		},
		Level: slog.LevelDebug,
	}

	handler := slog.NewTextHandler(os.Stdout, options)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func main() {
	flag.Parse()

	store, err := db.Open(constants.DbHost, constants.DbPort, constants.DbUser,
		constants.DbPassword, constants.DbName)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	mail := collect.NewService(store, store,
		constants.OauthClientId, constants.OauthClientSecret,
		constants.OauthRedirectUrl, constants.GroupThreads)

	web.Server(mail, store)
}
