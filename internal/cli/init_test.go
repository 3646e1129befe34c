package cli

import (
	"context"
	"testing"
	"time"

	"alice/internal/config"
	"alice/internal/core"
	"alice/internal/log"
	"alice/internal/notify"
)

func TestSetupLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	logger := SetupLogger(&cfg, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Errorf("component = %q, want %q", logger.Component(), log.ComponentWorker)
	}
	if SetupLogger(nil, log.ComponentCLI) == nil {
		t.Error("SetupLogger(nil) returned nil")
	}
}

func TestInitAMQPDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.AMQPURL = ""
	if client := InitAMQP(log.Nop(), &cfg); client != nil {
		t.Fatal("expected no client without a broker URL")
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    int
	}{
		{name: "enabled", enabled: true, want: 1},
		{name: "disabled", enabled: false, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.NotificationsEnabled = tt.enabled
			rec := notify.NewRecorder(4)

			gate := NewNotifier(log.Nop(), &cfg, nil, rec)
			if gate.Granted() != tt.enabled {
				t.Fatalf("Granted() = %v, want %v", gate.Granted(), tt.enabled)
			}
			err := gate.Notify(context.Background(), core.Notification{
				Kind:      core.KindBillReminder,
				Email:     "ada@example.com",
				Title:     "Bill due",
				CreatedAt: time.Now(),
			})
			if err != nil {
				t.Fatalf("Notify() error = %v", err)
			}
			if got := len(rec.Recent("ada@example.com", 0)); got != tt.want {
				t.Errorf("recorded %d notifications, want %d", got, tt.want)
			}
		})
	}
}
