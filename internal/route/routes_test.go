package route

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"birdcam/internal/config"
	"birdcam/internal/dto"
	"birdcam/internal/logger"
	"birdcam/internal/metrics"
	"birdcam/internal/model"
	"birdcam/internal/repository/sqlite"
	"birdcam/internal/service/storage"
	hub "birdcam/internal/service/websocket"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type server struct {
	url    string
	hub    *hub.Hub
	images *sqlite.ImageRepository
	dets   *sqlite.DetectionRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "evidence")

	db, err := sqlite.New(filepath.Join(dir, "evidence.db"))
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)

	log := logger.New(io.Discard)
	h := hub.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	s := &server{
		hub:    h,
		images: sqlite.NewImageRepository(db),
		dets:   sqlite.NewDetectionRepository(db),
	}
	ts := httptest.NewServer(SetupRoutes(Deps{
		Config:        cfg,
		Logger:        log,
		Hub:           h,
		Metrics:       m,
		Sink:          storage.NewFileSink(cfg.OutputDir, cfg.JPEGQuality),
		ImageRepo:     s.images,
		DetectionRepo: s.dets,
		Started:       time.Now(),
	}))
	s.url = ts.URL

	t.Cleanup(func() {
		cancel()
		<-done
		ts.Close()
		db.Close()
	})
	return s
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	s := newServer(t)

	var health dto.Health
	assert.Equal(t, http.StatusOK, getJSON(t, s.url+"/healthz", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Viewers)
}

func TestEvidenceListing(t *testing.T) {
	s := newServer(t)
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	for i, class := range []string{"bird", "cat", "bird"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		name := storage.Name(class, ts) + ".jpg"
		id, err := s.images.Insert(&model.Image{Filename: name, Camera: "garden", Class: class, Timestamp: ts, FilePath: name, FileSize: 100})
		require.NoError(t, err)
		require.NoError(t, s.dets.Replace(id, []model.DetectionRecord{{ObjectName: class, Width: 5, Height: 5, Confidence: 0.8}}))
	}

	var list dto.EvidenceList
	require.Equal(t, http.StatusOK, getJSON(t, s.url+"/api/evidence?class=bird&limit=1", &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Images, 1)
	assert.Equal(t, "bird_2025-06-15_14-32-00.jpg", list.Images[0].Name)
	assert.Len(t, list.Images[0].Detections, 1)
	assert.True(t, strings.HasPrefix(list.Images[0].URL, "/api/evidence/view?name="))

	var stats model.ImageStats
	require.Equal(t, http.StatusOK, getJSON(t, s.url+"/api/evidence/stats", &stats))
	assert.Equal(t, 3, stats.TotalImages)
	assert.Equal(t, 2, stats.PerClass["bird"])

	req, err := http.NewRequest(http.MethodDelete, s.url+"/api/evidence/delete?name=cat_2025-06-15_14-31-00.jpg", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusOK, getJSON(t, s.url+"/api/evidence", &list))
	assert.Equal(t, 2, list.Total)
}

func TestViewEvidence_RequiresName(t *testing.T) {
	s := newServer(t)

	resp, err := http.Get(s.url + "/api/evidence/view")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)

	resp, err := http.Get(s.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "birdcam_inference_duration_seconds")
}

func TestEventsWebsocket_ReceivesNotice(t *testing.T) {
	s := newServer(t)

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.url, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	evidence := model.Evidence{
		Event:    model.EvidenceEvent{ID: uuid.New(), Class: model.TargetClass{Name: "bird", ID: 16}, Timestamp: time.Now()},
		Camera:   "garden",
		Name:     "bird_x",
		Location: "/evidence/bird_x.jpg",
	}
	require.NoError(t, s.hub.OnEvidence(context.Background(), evidence))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var notice model.EvidenceNotice
	require.NoError(t, conn.ReadJSON(&notice))
	assert.Equal(t, evidence.Event.ID.String(), notice.ID)
	assert.Equal(t, "bird", notice.Class)
}
