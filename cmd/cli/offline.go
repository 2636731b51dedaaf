package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/estateledger/internal/adapter/http/dto"
	"github.com/iho/estateledger/internal/adapter/repository/memory"
	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/domain"
	"github.com/iho/estateledger/internal/ingest"
	"github.com/iho/estateledger/internal/usecase"
)

type snapshotOptions struct {
	path               string
	scope              string
	materialityCents   int64
	centralCostPattern []string
}

func (o *snapshotOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "snapshot", "f", "", "Snapshot JSON file (- for stdin)")
	cmd.Flags().StringVar(&o.scope, "scope", "", "Location ID, or GLOBAL")
	cmd.Flags().Int64Var(&o.materialityCents, "unklar-threshold", 100000, "Materiality limit for unresolved amounts in cents, negative disables")
	cmd.Flags().StringSliceVar(&o.centralCostPattern, "central-cost", nil, "Description patterns of central procedure costs")
	_ = cmd.MarkFlagRequired("snapshot")
}

// workspace holds a snapshot loaded into the in-memory store together with the
// use cases that run against it.
type workspace struct {
	caseID         string
	aggregation    *usecase.AggregationUseCase
	bankBalance    *usecase.BankBalanceUseCase
	classification *usecase.ClassificationUseCase
}

func loadWorkspace(cmd *cobra.Command, o *snapshotOptions) (*workspace, error) {
	in := cmd.InOrStdin()
	if o.path != "-" {
		f, err := os.Open(o.path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		in = f
	}

	snap, err := ingest.DecodeSnapshot(in)
	if err != nil {
		return nil, err
	}
	resolved, err := snap.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot: %w", err)
	}

	store := memory.NewStore()
	store.Seed(resolved)

	txManager := memory.NewTxManager(store)
	entryRepo := memory.NewEntryRepository(store)
	counterpartyRepo := memory.NewCounterpartyRepository(store)
	stateRepo := memory.NewAggregationStateRepository(store)
	auditRepo := memory.NewAuditRepository(store)
	loader := usecase.NewSnapshotLoader(
		memory.NewCaseRepository(store),
		memory.NewPlanRepository(store),
		entryRepo,
		counterpartyRepo,
		memory.NewBankAccountRepository(store),
		0,
	)

	settings := usecase.AggregationSettings{Options: aggregation.Options{
		UnklarThresholdCents: o.materialityCents,
		CentralCostPatterns:  o.centralCostPattern,
	}}
	logger := zerolog.Nop()

	return &workspace{
		caseID:         resolved.Case.ID,
		aggregation:    usecase.NewAggregationUseCase(loader, stateRepo, txManager, auditRepo, nil, nil, nil, settings, logger),
		bankBalance:    usecase.NewBankBalanceUseCase(loader),
		classification: usecase.NewClassificationUseCase(txManager, entryRepo, counterpartyRepo, stateRepo, auditRepo, memory.Retrier{}, nil, nil, logger),
	}, nil
}

func newAggregateCmd(root *rootOptions) *cobra.Command {
	o := &snapshotOptions{}
	var valueKinds []string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a snapshot into plan periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, o)
			if err != nil {
				return err
			}

			kinds := make([]domain.ValueKind, 0, len(valueKinds))
			for _, k := range valueKinds {
				kind := domain.ValueKind(strings.ToUpper(k))
				if kind != domain.ValueKindActual && kind != domain.ValueKindProjected {
					return fmt.Errorf("unknown value kind %q", k)
				}
				kinds = append(kinds, kind)
			}

			view, err := ws.aggregation.Aggregate(context.Background(), usecase.AggregateInput{
				CaseID:     ws.caseID,
				ScopeID:    o.scope,
				ValueKinds: kinds,
			})
			if err != nil {
				return err
			}

			if root.format == "table" {
				return printPeriods(cmd.OutOrStdout(), view.Result)
			}
			return printJSON(cmd.OutOrStdout(), dto.AggregationFromView(view))
		},
	}
	o.bind(cmd)
	cmd.Flags().StringSliceVar(&valueKinds, "value-kind", nil, "ACTUAL, PROJECTED or both")
	return cmd
}

func newEstateSummaryCmd(root *rootOptions) *cobra.Command {
	o := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "estate-summary",
		Short: "Split a snapshot into Altmasse and Neumasse",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, o)
			if err != nil {
				return err
			}

			view, err := ws.aggregation.EstateSummary(context.Background(), ws.caseID, o.scope)
			if err != nil {
				return err
			}

			if root.format == "table" {
				return printEstate(cmd.OutOrStdout(), view)
			}
			return printJSON(cmd.OutOrStdout(), dto.EstateSummaryFromView(view))
		},
	}
	o.bind(cmd)
	return cmd
}

func newBalancesCmd(root *rootOptions) *cobra.Command {
	o := &snapshotOptions{}
	var projected, unreviewed bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Compute bank account balances per period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, o)
			if err != nil {
				return err
			}

			report, err := ws.bankBalance.Balances(context.Background(), usecase.BankBalanceInput{
				CaseID:            ws.caseID,
				ScopeID:           o.scope,
				IncludeProjected:  projected,
				IncludeUnreviewed: unreviewed,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), dto.BankBalancesFromReport(report))
		},
	}
	o.bind(cmd)
	cmd.Flags().BoolVar(&projected, "projected", false, "Include projected entries")
	cmd.Flags().BoolVar(&unreviewed, "include-unreviewed", false, "Also book entries that are not reviewed yet")
	return cmd
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	o := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Suggest counterparties for unreviewed entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd, o)
			if err != nil {
				return err
			}

			out, err := ws.classification.Run(context.Background(), usecase.ClassifyInput{
				CaseID: ws.caseID,
				UserID: root.userID,
				DryRun: true,
			})
			if err != nil {
				return err
			}

			if root.format == "table" {
				return printClassification(cmd.OutOrStdout(), out)
			}
			return printJSON(cmd.OutOrStdout(), dto.ClassificationFromOutput(out))
		},
	}
	o.bind(cmd)
	return cmd
}
