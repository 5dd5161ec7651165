package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
)

// POST /api/playlists/rank
// Stateless: filters, sorts and pages a playlist list the client already holds.
func rankPlaylistsHandler(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if req.Page < 0 || req.PageSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page and page_size must not be negative"})
		return
	}
	if req.Playlists == nil {
		req.Playlists = []discovery.PlaylistView{}
	}
	c.JSON(http.StatusOK, rank.Rank(req.Playlists, req.Bounds, req.Page, req.PageSize))
}
