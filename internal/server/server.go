// Package server publishes the contact list as a read-only vCard feed on
// localhost, so address books and other local tools can subscribe to it.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// feedItem stores the rendered feed and its metadata for HTTP caching.
type feedItem struct {
	data         []byte
	count        int
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// FeedServer serves the latest contact snapshot as text/vcard.
type FeedServer struct {
	// Reads happen on every request, writes only on store changes.
	cache atomic.Pointer[feedItem]
	Port  string
}

// NewFeedServer creates a server for port. Nothing listens until Start.
func NewFeedServer(port string) *FeedServer {
	return &FeedServer{Port: port}
}

// URL is the address clients subscribe to.
func (s *FeedServer) URL() string {
	return config.SchemeHTTP + "://" + config.LocalhostBindAddr + config.AddrSeparator + s.Port + config.RouteFeed
}

// Handler returns the routes of the feed.
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteFeed, s.handleFeedRequest)
	return mux
}

// Start listens on localhost and blocks until ctx is cancelled.
func (s *FeedServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update renders list, sorted by name, and atomically replaces the feed.
// Contacts still waiting for a server id are published too.
func (s *FeedServer) Update(list []contact.Contact) error {
	var buf bytes.Buffer
	if err := contact.EncodeVCards(&buf, contact.SortedByName(list)); err != nil {
		return err
	}
	data := buf.Bytes()

	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	// Skip no-op updates so Last-Modified stays meaningful.
	if prev := s.cache.Load(); prev != nil && prev.etag == etag {
		return nil
	}

	s.cache.Store(&feedItem{
		data:         data,
		count:        len(list),
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	})

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyCount, len(list),
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
	return nil
}

// handleFeedRequest serves the vCard content with HTTP caching support.
func (s *FeedServer) handleFeedRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	item := s.cache.Load()
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(config.HeaderContentType, config.MimeVCard)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := w.Write(item.data); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}
