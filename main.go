package main

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Options struct {
	DataDir       string `short:"d" long:"datadir" env:"DATA_DIR" default:"." description:"Directory holding the RESULTADOS/JUGADORES workbooks"`
	Listen        string `long:"listen" env:"LISTEN" default:":8080" description:"HTTP listen address"`
	DBPath        string `long:"db" env:"DB_PATH" description:"Submissions database path (default <datadir>/pp-consulta.db)"`
	SiteBaseURL   string `long:"siteurl" env:"SITE_BASE_URL" description:"Public base URL used in submission links"`
	SubmitSecret  string `long:"submitsecret" env:"SUBMIT_SECRET" default:"devsecret" description:"Secret for signing submission links"`
	AdminToken    string `long:"admintoken" env:"ADMIN_TOKEN" default:"devadmin" description:"Static token for admin endpoints"`
	TelegramToken string `long:"telegramtoken" env:"TELEGRAM_TOKEN" description:"Telegram bot token"`
	TelegramChat  string `long:"telegramchat" env:"TELEGRAM_CHAT_ID" description:"Telegram chat id"`
	NotifyCron    string `long:"notifycron" env:"NOTIFY_CRON" default:"0 9 * * *" description:"Cron expression for the daily notification pass"`
	NotifyOnce    bool   `long:"notify-once" description:"Run one notification pass and exit"`
	DevMode       bool   `long:"dev" description:"Pretty console logging"`
}

type Server struct {
	db            *gorm.DB
	dataDir       string
	submitSecret  string
	adminToken    string
	submitLimiter *limiter.Limiter

	mu      sync.RWMutex
	current *League
}

func (s *Server) league() *League {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// reload re-reads every season from the data directory and swaps the tables
// in one step.
func (s *Server) reload() error {
	l, err := LoadLeague(s.dataDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = l
	s.mu.Unlock()
	log.Info().Int("seasons", len(l.Seasons())).Msg("League data loaded")
	return nil
}

func initDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, err
	}
	return db, nil
}

func newSubmitLimiter() *limiter.Limiter {
	rate := limiter.Rate{Period: time.Hour, Limit: 30}
	return limiter.New(memorystore.NewStore(), rate)
}

func (s *Server) routes(r chi.Router) {
	r.Get("/api/seasons", s.GETSeasons)
	r.Get("/api/divisions", s.GETDivisions)
	r.Get("/api/standings", s.GETStandings)
	r.Get("/api/results", s.GETResults)

	r.Get("/submit", s.GETSubmitForm)
	r.Post("/submit", s.POSTSubmit)

	r.Get("/admin/review", s.adminOnly(s.GETAdminReview))
	r.Post("/admin/approve", s.adminOnly(s.POSTAdminApprove))
	r.Post("/admin/reject", s.adminOnly(s.POSTAdminReject))
	r.Post("/admin/reload", s.adminOnly(s.POSTAdminReload))
}

func main() {
	godotenv.Load()

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if opts.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	s := &Server{
		dataDir:       opts.DataDir,
		submitSecret:  opts.SubmitSecret,
		adminToken:    opts.AdminToken,
		submitLimiter: newSubmitLimiter(),
	}
	if err := s.reload(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load league data")
	}

	notifier := NewNotifier(opts.TelegramToken, opts.TelegramChat, opts.SiteBaseURL, opts.SubmitSecret, s.league)

	if opts.NotifyOnce {
		if !notifier.Enabled() {
			log.Fatal().Msg("Telegram token and chat id are required for --notify-once")
		}
		if err := notifier.Run(time.Now().UTC()); err != nil {
			log.Fatal().Err(err).Msg("Notification pass failed")
		}
		return
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(opts.DataDir, "pp-consulta.db")
	}
	db, err := initDatabase(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Database initialization failed")
	}
	s.db = db

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Admin-Token"},
	}))
	s.routes(r)

	if notifier.Enabled() {
		c := cron.New()
		if _, err := c.AddFunc(opts.NotifyCron, func() {
			if err := notifier.Run(time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("Notification pass failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("cron", opts.NotifyCron).Msg("Invalid notification schedule")
		}
		c.Start()
		log.Info().Str("cron", opts.NotifyCron).Msg("Notification schedule started")
	} else {
		log.Warn().Msg("Telegram credentials missing, notifications disabled")
	}

	log.Info().Str("listen", opts.Listen).Msg("Starting server")
	if err := http.ListenAndServe(opts.Listen, r); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}
