package bootstrap

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	exportinadapter "deckhand/internal/modules/export/adapter/in"
	exportoutadapter "deckhand/internal/modules/export/adapter/out"
	exportin "deckhand/internal/modules/export/port/in"
	exportservice "deckhand/internal/modules/export/service"
	exportusecase "deckhand/internal/modules/export/usecase"
	geninadapter "deckhand/internal/modules/generation/adapter/in"
	genoutadapter "deckhand/internal/modules/generation/adapter/out"
	genin "deckhand/internal/modules/generation/port/in"
	genservice "deckhand/internal/modules/generation/service"
	genusecase "deckhand/internal/modules/generation/usecase"
	historyinadapter "deckhand/internal/modules/history/adapter/in"
	historyoutadapter "deckhand/internal/modules/history/adapter/out"
	historyin "deckhand/internal/modules/history/port/in"
	historyservice "deckhand/internal/modules/history/service"
	historyusecase "deckhand/internal/modules/history/usecase"
	reviewinadapter "deckhand/internal/modules/review/adapter/in"
	reviewoutadapter "deckhand/internal/modules/review/adapter/out"
	reviewin "deckhand/internal/modules/review/port/in"
	reviewservice "deckhand/internal/modules/review/service"
	reviewusecase "deckhand/internal/modules/review/usecase"
	sourceinadapter "deckhand/internal/modules/source/adapter/in"
	sourceoutadapter "deckhand/internal/modules/source/adapter/out"
	sourcein "deckhand/internal/modules/source/port/in"
	sourceservice "deckhand/internal/modules/source/service"
	sourceusecase "deckhand/internal/modules/source/usecase"
	"deckhand/internal/platform/clock"
	"deckhand/internal/platform/config"
	"deckhand/internal/platform/id"
	"deckhand/internal/platform/logging"
	"deckhand/internal/platform/sqlite"
	uiapp "deckhand/internal/ui/app"
)

// App is the wired application: one engine instance shared by the CLI
// handlers and the TUI. Close releases the engine's timers, the
// database, and the log file.
type App struct {
	GenerationCLI geninadapter.CLIHandler
	ReviewCLI     reviewinadapter.CLIHandler
	HistoryCLI    historyinadapter.CLIHandler
	SourceCLI     sourceinadapter.CLIHandler
	ExportCLI     exportinadapter.CLIHandler

	generation genin.Usecase
	review     reviewin.Usecase
	history    historyin.Usecase
	source     sourcein.Usecase
	export     exportin.Usecase

	logger *zap.Logger
	closes []func() error
}

func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogPath, false)
	if err != nil {
		return nil, fmt.Errorf("open logger: %w", err)
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	clk := clock.SystemClock{}
	ids := id.RandomHex{}

	prefs, err := genoutadapter.NewSQLitePreferences(db)
	if err != nil {
		_ = db.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("new preferences store: %w", err)
	}

	runIndex, err := historyoutadapter.NewSQLiteRunIndex(db)
	if err != nil {
		_ = db.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("new run index: %w", err)
	}
	historyUC := historyusecase.NewInteractor(historyservice.NewRunService(
		historyoutadapter.NewDeckNoteStore(cfg.DataDir),
		runIndex,
	))

	backend := genoutadapter.NewHTTPBackend(cfg.BackendURL, cfg.HTTPTimeout, logger)
	slot := genoutadapter.NewFileSessionSlot(cfg.SlotPath)
	recorder := genoutadapter.NewHistoryRecorder(historyUC)

	store := genservice.NewStore(clk, ids, prefs)
	synth := genservice.NewProgressSynthesizer(clk)
	// The trickle keeps moving between real events; the interactor's
	// Close stops the loop again.
	synth.Start()
	recovery := genservice.NewRecovery(store, synth, backend, slot, recorder, clk, logger)
	controller := genservice.NewController(store, synth, backend, slot, recorder, recovery, clk, logger)
	estimator := genservice.NewEstimator(clk, backend, logger)
	generationUC := genusecase.NewInteractor(store, controller, synth, recovery, estimator)

	gateway := reviewoutadapter.NewHTTPGateway(cfg.BackendURL, cfg.HTTPTimeout, logger)
	reviewStore := reviewservice.NewStore(prefs)
	manager := reviewservice.NewManager(generationUC, gateway, gateway, reviewStore, logger)
	syncer := reviewservice.NewSyncer(generationUC, gateway, gateway, reviewStore, logger)
	reviewUC := reviewusecase.NewInteractor(generationUC, reviewStore, manager, syncer)

	sourceUC := sourceusecase.NewInteractor(sourceservice.NewInspector(
		sourceoutadapter.NewLocalFileProber(),
		sourceoutadapter.NewLocalPDFProber(),
	))

	exportUC := exportusecase.NewInteractor(exportservice.NewExportService(
		exportoutadapter.NewFileManifestStore(cfg.DataDir),
		exportoutadapter.NewGRPCHost(),
		exportoutadapter.NewReviewCardSource(reviewUC, historyUC),
	))

	return &App{
		GenerationCLI: geninadapter.NewCLIHandler(generationUC),
		ReviewCLI:     reviewinadapter.NewCLIHandler(reviewUC),
		HistoryCLI:    historyinadapter.NewCLIHandler(historyUC),
		SourceCLI:     sourceinadapter.NewCLIHandler(sourceUC),
		ExportCLI:     exportinadapter.NewCLIHandler(exportUC),

		generation: generationUC,
		review:     reviewUC,
		history:    historyUC,
		source:     sourceUC,
		export:     exportUC,

		logger: logger,
		closes: []func() error{db.Close, logger.Sync},
	}, nil
}

// Close stops the engine's timers and releases shared resources. Safe
// to call once after the CLI command or the TUI finishes.
func (a *App) Close() {
	a.review.Close()
	a.generation.Close()
	for _, fn := range a.closes {
		_ = fn()
	}
}

// RunTUI starts the full-screen terminal UI on the wired app.
func RunTUI(app *App) error {
	model := uiapp.NewModel(app.generation, app.review, app.history, app.source, app.export)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
