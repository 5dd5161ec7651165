package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/jobs"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/progress"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/store"
)

const streamBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func discoverRequestFrom(c *gin.Context) discovery.Request {
	return discovery.Request{
		ArtistID: strings.TrimSpace(c.Query("artist_id")),
		TrackID:  strings.TrimSpace(c.Query("track_id")),
		Keywords: c.Query("keywords"),
	}
}

// startRun registers a job and launches the run. consumer lives as long
// as the client reading the stream; the run gets a child of it that the
// cancel endpoint can stop without taking the client's terminal event.
func (s *server) startRun(consumer context.Context, req discovery.Request) (jobs.Job, *progress.Stream, context.CancelFunc) {
	job := s.jobs.CreateJob(req.ArtistID, req.TrackID)
	req.RunID = job.ID

	runCtx, cancel := context.WithCancel(consumer)
	s.jobs.SetCancel(job.ID, cancel)
	out := progress.NewStream(consumer, streamBuffer)

	go func() {
		s.jobs.Update(job.ID, func(j *jobs.Job) { j.Status = jobs.StatusRunning })
		rep, err := s.runner.Run(runCtx, req, out)
		s.jobs.Update(job.ID, func(j *jobs.Job) {
			if err != nil {
				j.Status = jobs.StatusError
				j.Error = discovery.UserMessage(err)
				return
			}
			j.Status = jobs.StatusFinished
			j.Percent = progress.DonePercent
			j.Result = rep
		})
	}()
	return job, out, cancel
}

// mirror copies stream progress into the job for polling clients.
func (s *server) mirror(jobID string, e progress.Event) {
	s.jobs.Update(jobID, func(j *jobs.Job) {
		j.Percent = e.Percent
		if e.Message != "" {
			j.Message = e.Message
		}
	})
}

// GET /api/discover/stream?artist_id=&track_id=&keywords=
func (s *server) discoverStreamHandler(c *gin.Context) {
	job, out, cancel := s.startRun(c.Request.Context(), discoverRequestFrom(c))
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Job-ID", job.ID)
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		e, ok := <-out.Events()
		if !ok {
			return false
		}
		s.mirror(job.ID, e)
		if err := progress.WriteSSE(w, e); err != nil {
			log.WithError(err).WithField("job", job.ID).Debug("sse write failed")
			return false
		}
		return !e.Terminal()
	})
}

// GET /api/discover/ws?artist_id=&track_id=&keywords=
func (s *server) discoverWSHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	// The hijacked request has no usable context; the client's lifetime
	// is its read loop. The only thing read from the client is its disconnect.
	consumer, gone := context.WithCancel(context.Background())
	defer gone()
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				gone()
				return
			}
		}
	}()

	job, out, cancel := s.startRun(consumer, discoverRequestFrom(c))
	defer cancel()

	for e := range out.Events() {
		s.mirror(job.ID, e)
		if err := ws.WriteJSON(e); err != nil {
			log.WithError(err).WithField("job", job.ID).Debug("ws write failed")
			gone()
			break
		}
	}
	err = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.WithError(err).WithField("job", job.ID).Debug("ws close failed")
	}
}

// GET /api/discover/status?job_id=
func (s *server) discoverStatusHandler(c *gin.Context) {
	id := c.Query("job_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// DELETE /api/discover/:id
func (s *server) discoverCancelHandler(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.jobs.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if !s.jobs.Cancel(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "job already finished"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"cancelled": true})
}

// GET /api/discover/runs/:id
func (s *server) discoverRunHandler(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run storage disabled"})
		return
	}
	run, err := s.runs.LoadRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		log.WithError(err).Error("load run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	c.JSON(http.StatusOK, run)
}
