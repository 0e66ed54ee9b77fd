package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealmate/internal/model"
	"github.com/sells-group/dealmate/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		snap, err := loadSnapshot(ctx, st)
		if err != nil {
			return err
		}
		orch := newOrchestrator(st, snap)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, orch.Analyze),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analyzeFunc runs one analysis for a document on behalf of a user.
type analyzeFunc func(ctx context.Context, documentID, userID string) (*model.Run, error)

// newRouter wires the HTTP API. Analysis runs synchronously: the
// analyze response is the terminal run with its per-agent report,
// complete or partial.
func newRouter(st store.Store, analyze analyzeFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			DocumentID string `json:"document_id"`
			DealID     string `json:"deal_id"`
			Name       string `json:"name"`
			Type       string `json:"type"`
			Text       string `json:"text"`
			UserID     string `json:"user_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		documentID := body.DocumentID
		if documentID == "" {
			if body.Text == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_id or text is required"})
				return
			}
			docType := model.DocumentType(body.Type)
			if docType == "" {
				docType = model.DocumentTypeCIM
			}
			doc := &model.Document{
				DealID: body.DealID,
				Name:   body.Name,
				Type:   docType,
				Text:   body.Text,
			}
			if err := st.CreateDocument(req.Context(), doc); err != nil {
				zap.L().Error("create document", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "create document failed"})
				return
			}
			documentID = doc.ID
		} else if _, err := st.GetDocument(req.Context(), documentID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}

		run, err := analyze(req.Context(), documentID, body.UserID)
		if run == nil {
			zap.L().Error("analysis failed",
				zap.String("document_id", documentID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analysis failed"})
			return
		}
		if err != nil {
			// terminal run exists; its report carries the failure detail
			zap.L().Warn("analysis finished with errors",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Error(err),
			)
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.RunFilter{
			Status:     model.RunStatus(q.Get("status")),
			DocumentID: q.Get("document_id"),
			DealID:     q.Get("deal_id"),
			Limit:      50,
		}

		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/documents/{id}/results", func(w http.ResponseWriter, req *http.Request) {
		results, err := st.ListAnalysisResults(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("list analysis results", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list results failed"})
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
