package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/weft-dev/weft"
	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/pkg/store"
)

// newLogger builds the service logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildRegistry creates the declared signals. It returns two views over the
// same signals: all of them (served by the gateway) and the persist: true
// subset (captured by the snapshotter).
func buildRegistry(cfg *config.Config) (all, persisted *weft.Registry, err error) {
	all = weft.NewRegistry()
	persisted = weft.NewRegistry()

	for _, sc := range cfg.Signals {
		sig, err := newSignal(sc)
		if err != nil {
			return nil, nil, err
		}
		if err := all.Register(sc.Name, sig); err != nil {
			return nil, nil, err
		}
		if sc.Persist {
			if err := persisted.Register(sc.Name, sig); err != nil {
				return nil, nil, err
			}
		}
	}
	return all, persisted, nil
}

// newSignal creates one signal of the declared element type and applies the
// declared initial value.
func newSignal(sc config.SignalConfig) (weft.AnySignal, error) {
	var sig weft.AnySignal
	switch sc.Type {
	case "string":
		sig = weft.NewSignal("")
	case "int":
		sig = weft.NewSignal(0)
	case "float":
		sig = weft.NewSignal(0.0)
	case "bool":
		sig = weft.NewSignal(false)
	case "json":
		// Raw JSON is a byte slice, which never compares equal by default;
		// byte comparison restores no-op-if-unchanged semantics.
		sig = weft.NewSignal(json.RawMessage("null")).WithEquals(
			func(a, b json.RawMessage) bool { return bytes.Equal(a, b) })
	default:
		return nil, fmt.Errorf("signal %q: unknown type %q", sc.Name, sc.Type)
	}

	initial, err := sc.InitialJSON()
	if err != nil {
		return nil, err
	}
	if initial != nil {
		if err := sig.SetJSON(initial); err != nil {
			return nil, fmt.Errorf("signal %q: apply initial value: %w", sc.Name, err)
		}
	}
	return sig, nil
}

// buildStore creates the configured snapshot backend. Returns nil when
// snapshots are disabled.
func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Snapshot.Backend {
	case "":
		return nil, nil

	case "disk":
		return store.NewDiskStore(cfg.Snapshot.Disk.Dir), nil

	case "s3":
		client := s3.New(s3.Options{
			Region:      cfg.Snapshot.S3.Region,
			Credentials: envCredentials(),
			BaseEndpoint: func() *string {
				if cfg.Snapshot.S3.Endpoint == "" {
					return nil
				}
				return aws.String(cfg.Snapshot.S3.Endpoint)
			}(),
		})
		st := store.NewS3Store(client, cfg.Snapshot.S3.Bucket)
		if cfg.Snapshot.S3.Prefix != "" {
			st = st.WithPrefix(cfg.Snapshot.S3.Prefix)
		}
		return st, nil

	case "redis":
		st := store.NewRedisStore(cfg.Snapshot.Redis.Addr, cfg.Snapshot.Redis.Password, cfg.Snapshot.Redis.DB)
		if cfg.Snapshot.Redis.Prefix != "" {
			st = st.WithPrefix(cfg.Snapshot.Redis.Prefix)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

// envCredentials resolves AWS credentials from the environment.
func envCredentials() aws.CredentialsProviderFunc {
	return func(ctx context.Context) (aws.Credentials, error) {
		id := os.Getenv("AWS_ACCESS_KEY_ID")
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 backend")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	}
}
