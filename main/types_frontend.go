package main

import (
	"github.com/Jonnymurillo288/PlaylistFinder/internal/discovery"
	"github.com/Jonnymurillo288/PlaylistFinder/internal/rank"
	"github.com/Jonnymurillo288/PlaylistFinder/lastfm"
	"github.com/Jonnymurillo288/PlaylistFinder/spotify"
)

// Request and response shapes of the HTTP layer. They stay in main,
// not in the packages that produce the data.

type rankRequest struct {
	Playlists []discovery.PlaylistView `json:"playlists"`
	rank.Bounds
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type artistDetails struct {
	Artist spotify.Artist `json:"artist"`
	Tags   []string       `json:"tags"`
	Events []lastfm.Event `json:"events"`
}

type similarResponse struct {
	Artist  spotify.Artist            `json:"artist"`
	Similar rank.Page[spotify.Artist] `json:"similar"`
}
