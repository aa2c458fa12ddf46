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

// This binary queries the table of a generated review site from the command
// line.  The site may be a local index.html or a hosted URL; hosted sites are
// fetched with Google application default credentials when -auth is set.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/googlegenomics/paraviewer/internal/query"
	"github.com/googlegenomics/paraviewer/internal/site"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

// predicates collects repeated -where flags.
type predicates []query.Predicate

func (p *predicates) String() string {
	var parts []string
	for _, pred := range *p {
		parts = append(parts, pred.String())
	}
	return strings.Join(parts, "; ")
}

func (p *predicates) Set(value string) error {
	pred, err := query.ParsePredicate(value)
	if err != nil {
		return err
	}
	*p = append(*p, pred)
	return nil
}

var (
	where      predicates
	sortField  = flag.String("sort", "", "field to sort by")
	descending = flag.Bool("desc", false, "sort in descending order")
	fields     = flag.String("fields", "Key,Region,Sample,Kind,CopyNumber,SpecialInfo,Degraded", "comma-separated fields to print")
	format     = flag.String("format", "tsv", "output format: tsv or json")
	selectRow  = flag.Int("select", -1, "if set, print the detail of this row index")
	auth       = flag.Bool("auth", false, "fetch hosted sites with Google default credentials")
	output     = flag.String("o", "", "output filename")
)

func init() {
	flag.Var(&where, "where", `filter "field op value"; op is eq, ne, contains, gt or lt (repeatable)`)
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("Usage: paraviewer-query [flags] <index.html path or URL>")
	}
	location := flag.Arg(0)

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	client := http.DefaultClient
	if *auth && query.DetectEnv(location) == query.Hosted {
		var err error
		if client, err = authClient(ctx); err != nil {
			log.Fatalf("Failed to create client: %v", err)
		}
	}

	d, err := load(ctx, client, location)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", location, err)
	}
	e := query.Load(d, query.DetectEnv(location))
	for _, p := range where {
		if err := e.Filter(p); err != nil {
			log.Fatalf("Invalid filter %q: %v", p, err)
		}
	}
	if *sortField != "" {
		if err := e.Sort(*sortField, *descending); err != nil {
			log.Fatalf("Invalid sort: %v", err)
		}
	}

	if *selectRow >= 0 {
		detail, err := e.Select(*selectRow)
		if err != nil {
			log.Fatalf("Failed to select row: %v", err)
		}
		if err := writeJSON(w, detail); err != nil {
			log.Fatalf("Failed to write detail: %v", err)
		}
		return
	}

	if err := write(w, e, *format, strings.Split(*fields, ",")); err != nil {
		log.Fatalf("Failed to write rows: %v", err)
	}
	log.Printf("%d of %d rows (%s)", len(e.Rows()), len(d.Rows), e.State())
}

// authClient returns a client using Google default credentials.  For
// compatibility with other tools, the standard cURL certificate authority
// override is read from the environment.
func authClient(ctx context.Context) (*http.Client, error) {
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			return nil, fmt.Errorf("reading CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("initializing system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("adding certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}
	return google.DefaultClient(ctx, scope)
}

// load reads the dataset embedded in the index.html at location, which is a
// file path or an http(s) URL.
func load(ctx context.Context, client *http.Client, location string) (*site.Dataset, error) {
	if query.DetectEnv(location) == query.Local {
		f, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return site.Extract(f)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status: %q", resp.Status)
	}
	return site.Extract(resp.Body)
}

func write(w io.Writer, e *query.Engine, format string, fields []string) error {
	rows := e.Rows()
	switch format {
	case "json":
		out := make([]site.Row, len(rows))
		for i, index := range rows {
			detail, err := e.Select(index)
			if err != nil {
				return err
			}
			out[i] = detail.Row
		}
		return writeJSON(w, out)
	case "tsv":
		tw := csv.NewWriter(w)
		tw.Comma = '\t'
		if err := tw.Write(fields); err != nil {
			return err
		}
		for _, index := range rows {
			detail, err := e.Select(index)
			if err != nil {
				return err
			}
			record := make([]string, len(fields))
			for i, field := range fields {
				if record[i], err = query.Value(detail.Row, field); err != nil {
					return err
				}
			}
			if err := tw.Write(record); err != nil {
				return err
			}
		}
		tw.Flush()
		return tw.Error()
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
