package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/application"
	interfaces "github.com/vcard-network/depositd/internal/interfaces"
)

const shutdownTimeout = 5 * time.Second

// HealthCheck returns nil if the daemon is able to serve requests.
type HealthCheck func(ctx context.Context) error

type ServiceOpts struct {
	Address  string
	APIToken string
	Version  string

	DepositSvc application.DepositService
	PubSubSvc  application.PubSubService
	Health     HealthCheck
}

func (o ServiceOpts) validate() error {
	if len(o.Address) <= 0 {
		return fmt.Errorf("missing listening address")
	}
	if _, _, err := net.SplitHostPort(o.Address); err != nil {
		return fmt.Errorf("invalid listening address %s: %w", o.Address, err)
	}
	if len(o.APIToken) <= 0 {
		return fmt.Errorf("missing api token")
	}
	if o.DepositSvc == nil {
		return fmt.Errorf("missing deposit service")
	}
	if o.PubSubSvc == nil {
		return fmt.Errorf("missing pubsub service")
	}
	return nil
}

type service struct {
	opts   ServiceOpts
	router *gin.Engine
	server *http.Server
}

// NewService returns the REST interface of the daemon.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	return newService(opts)
}

func newService(opts ServiceOpts) (*service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %w", err)
	}

	router := newRouter(opts)
	return &service{
		opts:   opts,
		router: router,
		server: &http.Server{
			Addr:              opts.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *service) Start() error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(lis); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	log.Infof("http interface is listening on %s", s.opts.Address)
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
		return
	}
	log.Debug("stopped http interface")
}
