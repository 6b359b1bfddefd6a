package pollingstation

import (
	"log/slog"

	httpadapter "urna/contexts/electoral-core/polling-station/adapters/http"
	"urna/contexts/electoral-core/polling-station/adapters/memory"
	"urna/contexts/electoral-core/polling-station/application/commands"
	"urna/contexts/electoral-core/polling-station/application/queries"
	"urna/contexts/electoral-core/polling-station/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	UnitOfWork ports.UnitOfWork
	Repository ports.Repository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Metrics    ports.Metrics
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			Ledger: commands.LedgerUseCase{
				UnitOfWork: deps.UnitOfWork,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Metrics:    deps.Metrics,
				Logger:     deps.Logger,
			},
			Casting: commands.CastingUseCase{
				UnitOfWork: deps.UnitOfWork,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Metrics:    deps.Metrics,
				Logger:     deps.Logger,
			},
			Adjudication: commands.AdjudicationUseCase{
				UnitOfWork: deps.UnitOfWork,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Metrics:    deps.Metrics,
				Logger:     deps.Logger,
			},
			Registry: commands.RegistryUseCase{
				UnitOfWork: deps.UnitOfWork,
				Clock:      deps.Clock,
				Logger:     deps.Logger,
			},
			Elections: commands.ElectionUseCase{
				UnitOfWork: deps.UnitOfWork,
				Clock:      deps.Clock,
				IDGen:      deps.IDGen,
				Logger:     deps.Logger,
			},
			Tally: queries.TallyUseCase{
				Reader:   deps.Repository,
				Circuits: deps.Repository,
			},
			Observed: queries.ObservedUseCase{
				Ballots: deps.Repository,
			},
			Voters: queries.VoterUseCase{
				Ledger:   deps.Repository,
				Circuits: deps.Repository,
			},
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		UnitOfWork: store,
		Repository: store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
