package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/onetoone/internal/adapters/blob"
	"github.com/okian/onetoone/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// azureEmulator answers the subset of the Blob REST API the store uses.
type azureEmulator struct {
	mu       sync.Mutex
	objects  map[string][]byte
	etags    map[string]string
	seq      int
	failGets atomic.Int32
	gets     atomic.Int32
	puts     atomic.Int32
	failPut  bool
	queries  []string
	// oversized makes reads answer with a body past the object limit
	oversized bool
}

func storageError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.WriteHeader(status)
}

func newAzureEmulator() *azureEmulator {
	return &azureEmulator{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (e *azureEmulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, r.URL.RawQuery)
	path := r.URL.Path

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		e.gets.Add(1)
		if e.failGets.Load() > 0 {
			e.failGets.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		data, ok := e.objects[path]
		if !ok {
			storageError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		if e.oversized {
			data = bytes.Repeat([]byte(" "), blob.MaxObjectBytes+1)
		}
		w.Header().Set("ETag", e.etags[path])
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodPut:
		e.puts.Add(1)
		if e.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("x-ms-blob-type") != "BlockBlob" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, exists := e.objects[path]
		if r.Header.Get("If-None-Match") == "*" && exists {
			storageError(w, http.StatusConflict, "BlobAlreadyExists")
			return
		}
		if m := r.Header.Get("If-Match"); m != "" {
			if !exists {
				storageError(w, http.StatusNotFound, "BlobNotFound")
				return
			}
			if e.etags[path] != m {
				storageError(w, http.StatusPreconditionFailed, "ConditionNotMet")
				return
			}
		}
		body, _ := io.ReadAll(r.Body)
		e.seq++
		e.objects[path] = body
		e.etags[path] = `"0x` + strconv.Itoa(e.seq) + `"`
		w.Header().Set("ETag", e.etags[path])
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := e.objects[path]; !ok {
			storageError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		delete(e.objects, path)
		delete(e.etags, path)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newAzureStore(url string, opts ...blob.AzureOption) *blob.Azure {
	base := []blob.AzureOption{
		blob.WithRetry(2, time.Millisecond),
		blob.WithAzureLogger(logger.Nop()),
	}
	store, err := blob.NewAzure("account", url, append(base, opts...)...)
	So(err, ShouldBeNil)
	return store
}

func TestAzureStore(t *testing.T) {
	Convey("Given an Azure store backed by an emulator", t, func() {
		emu := newAzureEmulator()
		srv := httptest.NewServer(emu)
		Reset(srv.Close)

		storeContract(newAzureStore(srv.URL))
	})

	Convey("Given an Azure store with a SAS token", t, func() {
		emu := newAzureEmulator()
		srv := httptest.NewServer(emu)
		defer srv.Close()
		store := newAzureStore(srv.URL, blob.WithSASToken("sv=2024&sig=abc"))

		Convey("Then object URLs carry the .json suffix and the token", func() {
			So(store.URL("data", "meetings"), ShouldEqual, srv.URL+"/data/meetings.json?sv=2024&sig=abc")
		})

		Convey("Then every request sends the token", func() {
			_, err := store.Put(context.Background(), "data", "k", []byte(`{}`), blob.Condition{})
			So(err, ShouldBeNil)
			_, err = store.Get(context.Background(), "data", "k")
			So(err, ShouldBeNil)
			emu.mu.Lock()
			defer emu.mu.Unlock()
			So(emu.queries, ShouldHaveLength, 2)
			for _, q := range emu.queries {
				So(q, ShouldContainSubstring, "sig=abc")
			}
		})
	})

	Convey("Given the public endpoint", t, func() {
		store, err := blob.NewAzure("myaccount", "")
		So(err, ShouldBeNil)

		Convey("Then it is derived from the account name", func() {
			So(store.URL("c", "k"), ShouldEqual, "https://myaccount.blob.core.windows.net/c/k.json")
		})
	})

	Convey("Given a server that fails transiently", t, func() {
		emu := newAzureEmulator()
		srv := httptest.NewServer(emu)
		defer srv.Close()
		store := newAzureStore(srv.URL)
		_, err := store.Put(context.Background(), "data", "k", []byte(`"v"`), blob.Condition{})
		So(err, ShouldBeNil)

		Convey("When reads fail fewer times than the retry budget", func() {
			emu.failGets.Store(2)
			obj, err := store.Get(context.Background(), "data", "k")

			Convey("Then the read succeeds after retrying", func() {
				So(err, ShouldBeNil)
				So(string(obj.Data), ShouldEqual, `"v"`)
				So(emu.gets.Load(), ShouldEqual, 3)
			})
		})

		Convey("When reads keep failing", func() {
			emu.failGets.Store(10)
			_, err := store.Head(context.Background(), "data", "k")

			Convey("Then a transport error is returned", func() {
				So(errors.Is(err, blob.ErrTransport), ShouldBeTrue)
				So(emu.gets.Load(), ShouldEqual, 3)
			})
		})

		Convey("When a write fails on the server", func() {
			emu.mu.Lock()
			emu.failPut = true
			emu.mu.Unlock()
			_, err := store.Put(context.Background(), "data", "k", []byte(`1`), blob.Condition{})

			Convey("Then it is not retried", func() {
				So(errors.Is(err, blob.ErrTransport), ShouldBeTrue)
				So(emu.puts.Load(), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a stored object that grew past the limit", t, func() {
		emu := newAzureEmulator()
		srv := httptest.NewServer(emu)
		defer srv.Close()
		store := newAzureStore(srv.URL)
		_, err := store.Put(context.Background(), "data", "k", []byte(`"v"`), blob.Condition{})
		So(err, ShouldBeNil)
		emu.mu.Lock()
		emu.oversized = true
		emu.mu.Unlock()

		Convey("Then a read fails instead of returning a truncated body", func() {
			_, err := store.Get(context.Background(), "data", "k")
			So(errors.Is(err, blob.ErrTransport), ShouldBeTrue)
			So(emu.gets.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a cancelled context", t, func() {
		emu := newAzureEmulator()
		srv := httptest.NewServer(emu)
		defer srv.Close()
		store := newAzureStore(srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then reads fail as transport errors", func() {
			_, err := store.Get(ctx, "data", "k")
			So(errors.Is(err, blob.ErrTransport), ShouldBeTrue)
		})
	})
}
