package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/eoarchive/data-access/datastore"
	"github.com/eoarchive/data-access/interface/filesystem"
	"github.com/eoarchive/data-access/service/log"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type config struct {
	AppPort    string
	StoresPath string
	BearerAuth string
}

func newAppConfig() (*config, error) {
	appPort := flag.String("port", "8080", "data access port to use")
	storesPath := flag.String("stores", "", "path of the yaml stores document")
	bearerAuth := flag.String("bearer-auth", "", "bearer token guarding the api (optional)")
	flag.Parse()

	if *appPort == "" {
		return nil, fmt.Errorf("failed to initialize port application flag")
	}
	if *storesPath == "" {
		return nil, fmt.Errorf("missing stores config flag")
	}
	return &config{
		AppPort:    *appPort,
		StoresPath: *storesPath,
		BearerAuth: *bearerAuth,
	}, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	storesConfig, err := datastore.LoadConfig(config.StoresPath)
	if err != nil {
		return fmt.Errorf("datastore.LoadConfig: %w", err)
	}

	fsRegistry, err := filesystem.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("filesystem.DefaultRegistry: %w", err)
	}
	providerRegistry, err := datastore.DefaultProviderRegistry()
	if err != nil {
		return fmt.Errorf("datastore.DefaultProviderRegistry: %w", err)
	}

	component, err := datastore.NewComponent(ctx, storesConfig, fsRegistry, providerRegistry)
	if err != nil {
		return fmt.Errorf("datastore.NewComponent: %w", err)
	}

	router := component.NewHandler()
	if config.BearerAuth != "" {
		router = BearerAuthenticate(config.BearerAuth, router)
	}
	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"})
	s := http.Server{
		Addr:    ":" + config.AppPort,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(router),
	}

	log.Logger(ctx).Sugar().Debugf("data access serves %d store(s) on :%s", len(component.StoreNames()), config.AppPort)
	return s.ListenAndServe()
}
