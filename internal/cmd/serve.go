package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/joyrelay/internal/log"
	"github.com/Alia5/joyrelay/internal/server/relay"
	"github.com/Alia5/joyrelay/internal/util"
)

type Serve struct {
	Relay  relay.Config `embed:""`
	Device DeviceFlags  `embed:"" prefix:"device."`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger)
}

func (s *Serve) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	src, err := s.Device.Open()
	if err != nil {
		return err
	}
	logger.Info("Starting joyrelay event server", "addr", s.Relay.Addr, "backend", s.Device.Backend, "index", s.Device.Index)

	srv := relay.New(s.Relay, src, logger, rawLogger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("failed to start event server", "error", err)
			if util.IsRunFromGUI() {
				fmt.Println("Press any key to exit...")
				util.WaitForKey()
			}
		}
		return err
	case <-srv.Ready():
	}

	select {
	case <-ctx.Done():
		_ = srv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
