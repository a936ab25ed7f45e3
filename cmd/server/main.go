package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Musab74/OnAir-backend/internal/auth"
	"github.com/Musab74/OnAir-backend/internal/broadcast"
	"github.com/Musab74/OnAir-backend/internal/config"
	"github.com/Musab74/OnAir-backend/internal/database"
	"github.com/Musab74/OnAir-backend/internal/gateway"
	"github.com/Musab74/OnAir-backend/internal/recognition"
	"github.com/Musab74/OnAir-backend/internal/registry"
	"github.com/Musab74/OnAir-backend/internal/storage"
	"github.com/Musab74/OnAir-backend/internal/translate"
)

var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
	})
	rootCmd.AddCommand(serveCmd)
}

var rootCmd = &cobra.Command{
	Use:   "onair",
	Short: "OnAir realtime subtitle and translation server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket subtitle server",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("command failed", "error", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := database.Init(cfg.Database); err != nil {
		return err
	}
	defer database.Close()

	recordings, err := storage.NewMinio(cfg.Storage)
	if err != nil {
		return err
	}
	if !recordings.Enabled() {
		logger.Info("recording storage disabled")
	}

	verifier, err := auth.NewVerifier(cfg.AuthSecret, cfg.AuthIssuer)
	if err != nil {
		return err
	}

	provider := &recognition.WSProvider{
		URL:    cfg.RecognizerURL,
		Logger: logger.WithPrefix("recognizer"),
	}
	var translator translate.Translator = &translate.HTTPTranslator{
		BaseURL: cfg.TranslateBaseURL,
	}
	if cfg.TranslateBaseURL == "" {
		logger.Warn("no translation service configured, using stub")
		translator = translate.Stub{}
	}

	engine := broadcast.NewEngine(translator, &subtitleArchiver{logger: logger}, logger.WithPrefix("broadcast"))

	reg := registry.New(provider, translator, engine, recordingStore(recordings), logger.WithPrefix("registry"), registry.Config{
		SampleRate:       cfg.SampleRate,
		ReadyTimeout:     cfg.ReadyTimeout,
		WatchdogInterval: cfg.WatchdogInterval,
	})

	gw := gateway.New(reg, verifier, cfg.AllowedOrigins, logger.WithPrefix("gateway"))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)
	mux.HandleFunc("GET /api/meetings/{code}/subtitles", requireAuth(verifier, handleListSubtitles))
	mux.HandleFunc("GET /health", handleHealth)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// recordingStore returns nil when storage is disabled so the registry skips
// archival entirely.
func recordingStore(m *storage.MinioClient) registry.RecordingStore {
	if !m.Enabled() {
		return nil
	}
	return m
}

// subtitleArchiver persists delivered subtitles off the broadcast path.
type subtitleArchiver struct {
	logger *log.Logger
}

func (a *subtitleArchiver) SaveSubtitle(d broadcast.Delivery) {
	go func() {
		err := database.InsertSubtitle(database.SubtitleRow{
			MeetingID:      d.MeetingID,
			SpeakerID:      d.SpeakerID,
			SpeakerName:    d.SpeakerName,
			OriginalText:   d.OriginalText,
			TranslatedText: d.TranslatedText,
			SourceLanguage: d.SourceLanguage,
			TargetLanguage: d.TargetLanguage,
			SpokenAt:       time.UnixMilli(d.Timestamp),
		})
		if err != nil {
			a.logger.Warn("subtitle archive failed",
				"meeting", d.MeetingID, "error", err)
		}
	}()
}

func requireAuth(verifier *auth.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearer(r.Header.Get("Authorization"), r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}
		if _, err := verifier.Verify(token); err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleListSubtitles returns a meeting's archived subtitles in spoken order,
// optionally filtered by target language.
func handleListSubtitles(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("code")
	targetLanguage := r.URL.Query().Get("language")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	rows, err := database.ListMeetingSubtitles(meetingID, targetLanguage, limit)
	if err != nil {
		logger.Error("list subtitles failed", "meeting", meetingID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []database.SubtitleRow{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"meetingId": meetingID,
		"subtitles": rows,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := database.HealthCheck(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
