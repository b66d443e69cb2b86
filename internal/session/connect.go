package session

import (
	"context"
	"fmt"

	"gareport/internal/api"
	"gareport/internal/config"
	"gareport/internal/logger"
	"gareport/internal/preset"
)

// Connection holds authorized clients for every Google API the CLI uses
type Connection struct {
	Credentials *api.Credentials
	Transport   *api.Transport
	Data        *api.DataClient
	Admin       *api.AdminClient
	Reporting   *api.ReportingClient
	Management  *api.ManagementClient
}

// CredentialsFile picks the preset's credentials over the global file
func CredentialsFile(cfg *config.AppConfig, p *preset.Preset) string {
	if p != nil && p.CredentialsFile != "" {
		return p.CredentialsFile
	}
	return cfg.CredentialsFile
}

// Connect loads credentials and builds the API clients. cache may be nil
func Connect(ctx context.Context, cfg *config.AppConfig, credentialsFile string, cache api.CacheInterface, prompt *api.LoginPrompt) (*Connection, error) {
	cacheDir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	creds, err := api.LoadCredentials(ctx, credentialsFile, api.AuthOptions{CacheDir: cacheDir, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("type", string(creds.Type)).Msg("Loaded credentials")

	if cfg.Cache.Disabled {
		cache = nil
	}
	transport := api.NewTransport(creds.HTTPClient(ctx), cfg.RateLimit)
	return &Connection{
		Credentials: creds,
		Transport:   transport,
		Data: api.NewDataClient(transport, cache, api.CacheTTL{
			MetadataHours: cfg.Cache.MetadataTTLHours,
			ReportHours:   cfg.Cache.ReportTTLHours,
		}),
		Admin:      api.NewAdminClient(transport),
		Reporting:  api.NewReportingClient(transport),
		Management: api.NewManagementClient(transport),
	}, nil
}

// Clients returns the report clients of the connection
func (c *Connection) Clients() Clients {
	return Clients{Data: c.Data, Definitions: c.Admin, Reporting: c.Reporting}
}

// Open connects with the preset's credentials and returns its session
func Open(ctx context.Context, cfg *config.AppConfig, p *preset.Preset, cache api.CacheInterface, prompt *api.LoginPrompt) (*Session, *Connection, error) {
	conn, err := Connect(ctx, cfg, CredentialsFile(cfg, p), cache, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	s, err := New(p, cfg, conn.Clients())
	if err != nil {
		return nil, nil, err
	}
	return s, conn, nil
}
