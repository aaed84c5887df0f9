package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/fx"

	"guildwarden/pkg/config"
)

// stopTimeout bounds graceful shutdown under the service manager. It
// leaves room for deferred commands to finish.
const stopTimeout = 30 * time.Second

// Program implements service.Interface around the fx application.
type Program struct {
	app    *fx.App
	logger service.Logger
}

// NewProgram creates the service program.
func NewProgram() *Program {
	return &Program{}
}

// Start implements service.Interface. It must not block.
func (p *Program) Start(svc service.Service) error {
	if p.logger != nil {
		_ = p.logger.Info("Starting guildwarden service")
	}
	p.app = newApp("service", fx.NopLogger)
	if err := p.app.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	return p.app.Start(ctx)
}

// Stop implements service.Interface.
func (p *Program) Stop(svc service.Service) error {
	if p.logger != nil {
		_ = p.logger.Info("Stopping guildwarden service")
	}
	if p.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := p.app.Stop(ctx); err != nil {
		if p.logger != nil {
			_ = p.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service definition. The config path is pinned
// so the service reads the same file as the installing user.
func ServiceConfig() *service.Config {
	args := []string{"serve"}
	path := configPath
	if path == "" {
		path = os.Getenv(config.ConfigPathEnv)
	}
	if path != "" {
		args = append([]string{"-c", path}, args...)
	}
	return &service.Config{
		Name:        "guildwarden",
		DisplayName: "Guildwarden",
		Description: "Discord moderation bot serving HTTP interactions",
		Arguments:   args,
	}
}

func newService() (service.Service, *Program, error) {
	prg := NewProgram()
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// InstallService installs the server as a system service.
func InstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	return s.Install()
}

// UninstallService removes the system service.
func UninstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	return s.Uninstall()
}

// StartService starts the installed service.
func StartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	return s.Start()
}

// StopService stops the running service.
func StopService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	return s.Stop()
}

// RestartService restarts the service.
func RestartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	return s.Restart()
}

// StatusService prints the service status.
func StatusService(w io.Writer) error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}
	fmt.Fprintf(w, "Service Status: %s\n", statusText(status))
	return nil
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// RunService runs under the service manager until it asks us to stop.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		_ = logger.Error(err)
		return err
	}
	return nil
}
