// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary serves a generated review site over HTTP so that it can be
// used in hosted mode.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	port      = flag.Int("port", 8080, "HTTP service port")
	directory = flag.String("directory", "", "site directory written by paraviewer")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")
)

// sitePath is the URL prefix of the site files.
const sitePath = "/site"

func main() {
	flag.Parse()

	if *directory == "" {
		log.Fatalf("You must specify the site -directory.")
	}
	if _, err := os.Stat(*directory + "/index.html"); err != nil {
		log.Fatalf("Directory %q does not hold a site: %v", *directory, err)
	}
	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}

	router := newRouter(*directory, prometheus.NewRegistry())
	address := fmt.Sprintf(":%d", *port)
	log.Printf("Serving %s at %s%s/", *directory, address, sitePath)
	if *secure {
		if err := router.RunTLS(address, *httpsCert, *httpsKey); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := router.Run(address); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}

func newRouter(directory string, reg *prometheus.Registry) *gin.Engine {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "paraviewer_server_requests_total",
		Help: "Requests served by status code",
	}, []string{"code"})

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), forwardOrigin, countRequests(requests))
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, sitePath+"/")
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.Static(sitePath, directory)
	return router
}

// forwardOrigin allows the igv.js viewer on another origin to load sessions
// and bundles.
func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}

func countRequests(requests *prometheus.CounterVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		requests.WithLabelValues(strconv.Itoa(c.Writer.Status())).Inc()
	}
}
