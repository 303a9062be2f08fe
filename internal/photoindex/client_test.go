package photoindex_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knsan189/imageLabeler/internal/photoindex"
)

func TestClient_ListUncaptioned(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/photos", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		assert.Equal(t, "40", r.URL.Query().Get("offset"))
		assert.Equal(t, "caption:false", r.URL.Query().Get("q"))

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"UID": "p1", "FileName": "2024/05/cat.png"},
			{"UID": "p2", "FileName": "root.png"},
			{"UID": "p3", "FileName": "done.png", "Caption": "already"},
			{"UID": "p4", "Path": "legacy", "Name": "old.png"},
			{"FileName": "no-uid.png"},
		})
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL+"/", "secret")
	page, err := client.ListUncaptioned(context.Background(), 20, 40)
	require.NoError(t, err)

	assert.Equal(t, []photoindex.Photo{
		{UID: "p1", FileName: "2024/05/cat.png", Folder: "2024/05"},
		{UID: "p2", FileName: "root.png", Folder: ""},
		{UID: "p4", FileName: "legacy/old.png", Folder: "legacy"},
	}, page.Photos)
	assert.Equal(t, 5, page.Fetched, "Fetched counts rows before filtering")
	assert.Equal(t, "cat.png", page.Photos[0].Name())
}

func TestClient_CandidateQueryOverride(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Query().Get("q"))
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	ctx := context.Background()
	_, err := photoindex.NewClient(ts.URL, "", photoindex.WithCandidateQuery("caption:false label:sd")).ListUncaptioned(ctx, 1, 0)
	require.NoError(t, err)
	_, err = photoindex.NewClient(ts.URL, "", photoindex.WithCandidateQuery("  ")).ListUncaptioned(ctx, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"caption:false label:sd", photoindex.DefaultCandidateQuery}, got)
}

func TestClient_FindByFileName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `filename:"cat.png"`, r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"UID": "other", "FileName": "a/cat.png.bak"},
			{"UID": "p1", "FileName": "a/CAT.png"},
		})
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "")
	photo, err := client.FindByFileName(context.Background(), "/local/dir/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "p1", photo.UID)
	assert.Equal(t, "a", photo.Folder)
}

func TestClient_FindByFileName_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "")
	_, err := client.FindByFileName(context.Background(), "missing.png")
	assert.ErrorIs(t, err, photoindex.ErrNotFound)
}

func TestClient_Labels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/photos/p1", r.URL.Path)
		w.Write([]byte(`{"UID":"p1","Labels":[
			{"Uncertainty":0,"Label":{"Name":"cat","Slug":"cat"}},
			{"Uncertainty":10,"Label":{"Name":"sd-labeled","Slug":"sd-labeled"}},
			{"Label":{}}
		]}`))
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "t")
	names, err := client.Labels(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "sd-labeled"}, names)
}

func TestClient_AddLabel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/photos/p1/label", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got photoindex.Label
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, photoindex.Label{Name: "cat", Priority: 10, Uncertainty: 5}, got)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "t")
	assert.NoError(t, client.AddLabel(context.Background(), "p1", photoindex.Label{Name: "cat", Priority: 10, Uncertainty: 5}))
}

func TestClient_UpdateCaption(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/photos/p1", r.URL.Path)

		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "a cat", got["Caption"])
		assert.Equal(t, "Negative prompt: blurry", got["Description"])
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "t")
	assert.NoError(t, client.UpdateCaption(context.Background(), "p1", "a cat", "Negative prompt: blurry"))
}

func TestClient_ErrorHandling(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/photos/gone":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"photo not found"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "bad")

	_, err := client.Labels(context.Background(), "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, photoindex.ErrNotFound)
	assert.ErrorIs(t, err, photoindex.ErrStatus)
	assert.Contains(t, err.Error(), "api error: 404")
	assert.Contains(t, err.Error(), `{"error":"photo not found"}`)

	err = client.Ping(context.Background())
	var se *photoindex.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.NotErrorIs(t, err, photoindex.ErrNotFound)
}

func TestClient_MalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer ts.Close()

	_, err := photoindex.NewClient(ts.URL, "").ListUncaptioned(context.Background(), 1, 0)
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := photoindex.NewClient(ts.URL, "", photoindex.WithTimeout(50*time.Millisecond))
	start := time.Now()
	err := client.Ping(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	client := photoindex.NewClient(ts.URL, "", photoindex.WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Ping(context.Background()))
	}
	// Burst 1 at 20/s: the second and third calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Ping(ctx), context.Canceled)
}

func TestClient_NoBaseURL(t *testing.T) {
	err := photoindex.NewClient("", "").Ping(context.Background())
	assert.Error(t, err)
}
