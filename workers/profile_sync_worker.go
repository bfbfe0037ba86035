// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"study-quest/config"
	"study-quest/logger"
	"study-quest/models"
)

// RemoteProfile matches the JSON the profile service returns.
type RemoteProfile struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  *string   `json:"first_name,omitempty"`
	LastName   *string   `json:"last_name,omitempty"`
	Timezone   string    `json:"timezone"`
	Subjects   []string  `json:"subjects"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the sync service response.
type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSink receives identity updates. Progress columns are not its business.
type ProfileSink interface {
	UpsertProfileIdentity(ctx context.Context, profiles []models.UserProfile) error
}

// ProfileSyncWorker mirrors name, email, timezone and subjects from the
// upstream profile service into local profiles.
type ProfileSyncWorker struct {
	sink         ProfileSink
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	mu    sync.Mutex
	since time.Time // newest remote updated_at applied so far
}

func NewProfileSyncWorker(sink ProfileSink, cfg config.SyncConfig, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		sink:         sink,
		interval:     cfg.Interval,
		baseURL:      cfg.URL,
		endpointPath: cfg.Path,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Start runs the sync loop in the background until ctx is cancelled. The
// returned channel closes once the loop has exited.
func (w *ProfileSyncWorker) Start(ctx context.Context) <-chan struct{} {
	logger.L().Info("🔁 Starting Profile Sync Worker (sync-service → profiles)…")
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()
	return done
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time
	if _, err := w.SyncOnce(ctx); err != nil {
		logger.L().Warnf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				logger.L().Errorf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			logger.L().Info("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// SyncOnce pulls every profile changed since the last successful batch and
// returns how many were applied.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sinceStr := w.since.UTC().Format(time.RFC3339)
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	logger.L().Debugf("[SYNC] ➡️  GET %s", finalURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	if len(response.Users) == 0 {
		logger.L().Debugf("[SYNC] ✅ No profile changes since %s", sinceStr)
		return 0, nil
	}

	// one row per external_id: a multi-row upsert may not touch a row twice
	profiles := make([]models.UserProfile, 0, len(response.Users))
	seen := make(map[string]int, len(response.Users))
	versions := make([]time.Time, 0, len(response.Users))
	latest := w.since
	for _, remote := range response.Users {
		if remote.ExternalID == "" {
			logger.L().Warnf("[SYNC] ⚠️ Skipping profile without external_id (username=%q)", remote.Username)
			continue
		}
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
		if i, ok := seen[remote.ExternalID]; ok {
			if !remote.UpdatedAt.Before(versions[i]) {
				profiles[i] = toLocalProfile(remote)
				versions[i] = remote.UpdatedAt
			}
			continue
		}
		seen[remote.ExternalID] = len(profiles)
		profiles = append(profiles, toLocalProfile(remote))
		versions = append(versions, remote.UpdatedAt)
	}

	if err := w.sink.UpsertProfileIdentity(ctx, profiles); err != nil {
		return 0, err
	}
	w.since = latest

	logger.L().Infof("[SYNC] ✅ Synced %d profile(s), latest updated_at=%s", len(profiles), latest.Format(time.RFC3339))
	return len(profiles), nil
}

func toLocalProfile(r RemoteProfile) models.UserProfile {
	var parts []string
	for _, p := range []*string{r.FirstName, r.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	name := strings.Join(parts, " ")
	if name == "" {
		name = r.Username
	}

	subjects := r.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return models.UserProfile{
		ID:       r.ExternalID,
		Name:     name,
		Email:    r.Email,
		Timezone: r.Timezone,
		Subjects: subjects,
		Level:    1,
	}
}
