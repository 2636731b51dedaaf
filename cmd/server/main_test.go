package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/estateledger/internal/infrastructure/config"
	"github.com/iho/estateledger/internal/infrastructure/eventpublisher"
)

func TestAggregationOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		UnklarMateriality:   decimal.RequireFromString("250.50"),
		CentralCostPatterns: []string{"insolvenzverwalter", "gericht"},
	}

	opts := aggregationOptions(cfg)

	if opts.UnklarThresholdCents != 25050 {
		t.Fatalf("expected threshold 25050 cents, got %d", opts.UnklarThresholdCents)
	}
	if len(opts.CentralCostPatterns) != 2 {
		t.Fatalf("expected central cost patterns to be passed through, got %v", opts.CentralCostPatterns)
	}
}

func TestNewPublisherFallsBackToLog(t *testing.T) {
	p := newPublisher(&config.Config{}, zerolog.Nop())
	if _, ok := p.(*eventpublisher.LogPublisher); !ok {
		t.Fatalf("expected log publisher without brokers, got %T", p)
	}

	p = newPublisher(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}, zerolog.Nop())
	defer p.Close()
	if _, ok := p.(*eventpublisher.KafkaPublisher); !ok {
		t.Fatalf("expected kafka publisher with brokers, got %T", p)
	}
}
