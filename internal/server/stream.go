package server

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
)

// StreamHandler serves the most recent captured image as MJPEG. Images are
// only encoded while at least one client is connected.
type StreamHandler struct {
	mu      sync.Mutex
	clients int
	jpeg    []byte
	notify  chan struct{}
}

// NewStreamHandler creates an empty stream.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{notify: make(chan struct{})}
}

// Push encodes mat as JPEG and hands it to connected clients. It is an
// app.ImageHook.
func (h *StreamHandler) Push(mat *gocv.Mat) {
	if mat == nil || mat.Empty() || h.ClientCount() == 0 {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *mat)
	if err != nil {
		log.Printf("stream encode error: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.publish(data)
}

func (h *StreamHandler) publish(jpeg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jpeg = jpeg
	close(h.notify)
	h.notify = make(chan struct{})
}

// ClientCount returns the number of connected viewers.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// ServeHTTP streams MJPEG frames to a client until it disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.mu.Lock()
	h.clients++
	wait := h.notify
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.clients--
		h.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-wait:
		}

		h.mu.Lock()
		jpeg := h.jpeg
		wait = h.notify
		h.mu.Unlock()

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
