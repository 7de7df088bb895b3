// Package kb indexes the salon knowledge base for retrieval during calls.
// Structured records (services, stylists, policies, FAQs, locations) are
// flattened into text documents and ranked with SQLite FTS5.
package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/square-key-labs/saloncall-ai/src/logger"
)

// DefaultTopK is how many documents a search returns when the caller does
// not say otherwise
const DefaultTopK = 3

type Service struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
}

type Stylist struct {
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Specialties  []string `json:"specialties"`
	Bio          string   `json:"bio"`
	Availability []string `json:"availability"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Location struct {
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Phone   string            `json:"phone"`
	Hours   map[string]string `json:"hours"`
	Parking string            `json:"parking"`
}

type SalonInfo struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
}

// Data is the on-disk shape of the knowledge base file
type Data struct {
	Salon     SalonInfo         `json:"salon"`
	Services  []Service         `json:"services"`
	Stylists  []Stylist         `json:"stylists"`
	Policies  map[string]string `json:"policies"`
	FAQs      []FAQ             `json:"faqs"`
	Locations []Location        `json:"locations"`
}

// Result is one search hit
type Result struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance_score"`
}

// Store loads salon_data.json and serves full-text search over it. New
// never fails; Load must succeed before Search is usable.
type Store struct {
	path string
	db   *sql.DB
	data *Data
	log  *logger.Logger
}

func New(path string) *Store {
	return &Store{path: path, log: logger.WithPrefix("kb")}
}

// Load reads the knowledge base file and builds the in-memory index
func (s *Store) Load(ctx context.Context) error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read knowledge base: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse knowledge base: %w", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	// a :memory: database exists per connection, so the pool must not grow
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx,
		`CREATE VIRTUAL TABLE docs USING fts5(content, source UNINDEXED)`); err != nil {
		db.Close()
		return fmt.Errorf("create index: %w", err)
	}

	docs := buildDocuments(&data)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return fmt.Errorf("begin index load: %w", err)
	}
	for _, d := range docs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO docs (content, source) VALUES (?, ?)`, d.content, d.source); err != nil {
			tx.Rollback()
			db.Close()
			return fmt.Errorf("index document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return fmt.Errorf("commit index load: %w", err)
	}

	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	s.data = &data
	s.log.Info("indexed %d knowledge base documents", len(docs))
	return nil
}

// Close releases the index
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Loaded reports whether Load has succeeded
func (s *Store) Loaded() bool {
	return s.db != nil
}

type document struct {
	content string
	source  string
}

func buildDocuments(data *Data) []document {
	var docs []document

	for _, svc := range data.Services {
		docs = append(docs, document{
			source: "services",
			content: fmt.Sprintf("Service: %s\nCategory: %s\nDescription: %s\nDuration: %d minutes\nPrice: $%g",
				svc.Name, svc.Category, svc.Description, svc.DurationMinutes, svc.Price),
		})
	}
	for _, st := range data.Stylists {
		docs = append(docs, document{
			source: "stylists",
			content: fmt.Sprintf("Stylist: %s\nTitle: %s\nSpecialties: %s\nBio: %s\nAvailable: %s",
				st.Name, st.Title, strings.Join(st.Specialties, ", "), st.Bio,
				strings.Join(st.Availability, ", ")),
		})
	}

	policyKeys := make([]string, 0, len(data.Policies))
	for key := range data.Policies {
		policyKeys = append(policyKeys, key)
	}
	sort.Strings(policyKeys)
	for _, key := range policyKeys {
		docs = append(docs, document{
			source:  "policies",
			content: fmt.Sprintf("Policy - %s: %s", titleWords(key), data.Policies[key]),
		})
	}

	for _, faq := range data.FAQs {
		docs = append(docs, document{
			source:  "faqs",
			content: fmt.Sprintf("Q: %s\nA: %s", faq.Question, faq.Answer),
		})
	}

	for _, loc := range data.Locations {
		dayKeys := make([]string, 0, len(loc.Hours))
		for day := range loc.Hours {
			dayKeys = append(dayKeys, day)
		}
		sort.Strings(dayKeys)
		var hours strings.Builder
		for _, day := range dayKeys {
			fmt.Fprintf(&hours, "  %s: %s\n", day, loc.Hours[day])
		}
		docs = append(docs, document{
			source: "locations",
			content: fmt.Sprintf("Location: %s\nAddress: %s\nPhone: %s\nHours:\n%sParking: %s",
				loc.Name, loc.Address, loc.Phone, hours.String(), loc.Parking),
		})
	}

	docs = append(docs, document{
		source: "salon_info",
		content: fmt.Sprintf("Salon: %s\nTagline: %s\nPhone: %s\nEmail: %s\nWebsite: %s",
			data.Salon.Name, data.Salon.Tagline, data.Salon.Phone, data.Salon.Email,
			data.Salon.Website),
	})
	return docs
}

// titleWords turns a snake_case key into spaced Title Case
func titleWords(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ftsQuery rewrites free text into an FTS5 OR query with every token
// quoted, so punctuation in caller speech cannot break the match syntax
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Search returns the topK most relevant documents for a free-text query
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if s.db == nil {
		return nil, fmt.Errorf("knowledge base not loaded")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, source, bm25(docs) FROM docs WHERE docs MATCH ? ORDER BY bm25(docs) LIMIT ?`,
		match, topK)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var score float64
		if err := rows.Scan(&r.Content, &r.Source, &score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		// bm25 scores are negative with better matches more negative
		r.Relevance = math.Round(-score*10000) / 10000
		results = append(results, r)
	}
	return results, rows.Err()
}

// ServiceByName looks up a service by exact name, case-insensitive
func (s *Store) ServiceByName(name string) *Service {
	if s.data == nil {
		return nil
	}
	for i := range s.data.Services {
		if strings.EqualFold(s.data.Services[i].Name, name) {
			return &s.data.Services[i]
		}
	}
	return nil
}

// StylistByName looks up a stylist by exact name, case-insensitive
func (s *Store) StylistByName(name string) *Stylist {
	if s.data == nil {
		return nil
	}
	for i := range s.data.Stylists {
		if strings.EqualFold(s.data.Stylists[i].Name, name) {
			return &s.data.Stylists[i]
		}
	}
	return nil
}

func (s *Store) Services() []Service {
	if s.data == nil {
		return nil
	}
	return s.data.Services
}

func (s *Store) Stylists() []Stylist {
	if s.data == nil {
		return nil
	}
	return s.data.Stylists
}

func (s *Store) Salon() SalonInfo {
	if s.data == nil {
		return SalonInfo{}
	}
	return s.data.Salon
}
