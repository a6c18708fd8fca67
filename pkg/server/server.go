// Copyright 2025 karhuops Oy
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the blob listing endpoint consumed by the
// reporting side.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/karhuops/bridgerc/pkg/blob"
	"github.com/karhuops/bridgerc/pkg/config"
)

// 🌐 Server is the HTTP listing service
type Server struct {
	router     *gin.Engine
	lister     blob.Lister
	defaultDir string
}

// New builds the server. A nil lister is allowed so the service can come
// up without blob credentials; the endpoint then answers 500 until they
// are configured.
func New(cfg config.BlobConfig, lister blob.Lister, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:     gin.Default(),
		lister:     lister,
		defaultDir: cfg.DefaultDirectory,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/csv-files", s.listCSV)
		api.POST("/csv-files", s.listCSV)
	}
}

// listCSV answers with the .csv blobs directly under a directory. The
// directory comes from the query string, a JSON body, or the configured
// default, in that order.
func (s *Server) listCSV(c *gin.Context) {
	directory := c.Query("directory")
	if directory == "" {
		var req struct {
			Directory string `json:"directory"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			directory = req.Directory
		}
	}
	if directory == "" {
		directory = s.defaultDir
	}
	directory = blob.NormalizeDirectory(directory)

	if s.lister == nil {
		c.String(http.StatusInternalServerError, "Blob storage is not configured.")
		return
	}

	names, err := s.lister.ListCSV(c.Request.Context(), directory)
	if err != nil {
		c.String(http.StatusInternalServerError, "Listing blobs failed: %s", err)
		return
	}
	if len(names) == 0 {
		c.String(http.StatusNotFound, "No .csv blobs found in directory '%s'.", directory)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"directory": directory,
		"csv_blobs": names,
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
