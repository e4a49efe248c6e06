package lexicon

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/logger"
)

// Neo4jConfig describes a Neo4j connection.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

const coHyponymQuery = `
MATCH (s:Synset)-[l:LEMMA]->(:Lemma {name: $term})
WITH s ORDER BY l.rank ASC LIMIT 1
MATCH (s)-[h:HYPERNYM]->(p:Synset)
WITH p ORDER BY h.rank ASC LIMIT 1
MATCH (c:Synset)-[:HYPERNYM]->(p)
MATCH (c)-[cl:LEMMA]->(lemma:Lemma)
WITH c, lemma ORDER BY cl.rank ASC
WITH c, collect(lemma.name)[0] AS name
RETURN name ORDER BY c.id`

const importQuery = `
UNWIND $synsets AS row
MERGE (s:Synset {id: row.id})
WITH s, row
UNWIND range(0, size(row.lemmas) - 1) AS i
MERGE (l:Lemma {name: row.lemmas[i]})
MERGE (s)-[r:LEMMA]->(l)
SET r.rank = row.rank + i
WITH DISTINCT s, row
UNWIND range(0, size(row.hypernyms) - 1) AS j
MERGE (p:Synset {id: row.hypernyms[j]})
MERGE (s)-[h:HYPERNYM]->(p)
SET h.rank = j`

// cypherRunner executes one query and returns every record.
type cypherRunner interface {
	read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	write(ctx context.Context, cypher string, params map[string]any) error
}

// Neo4jOntology answers co-hyponym queries against a WordNet-shaped graph:
// (:Synset)-[:LEMMA {rank}]->(:Lemma {name}) and
// (:Synset)-[:HYPERNYM {rank}]->(:Synset).
type Neo4jOntology struct {
	runner cypherRunner
	close  func(context.Context) error
	log    *zap.Logger
}

// NewNeo4jOntology connects to Neo4j and verifies connectivity.
func NewNeo4jOntology(ctx context.Context, cfg Neo4jConfig, log *zap.Logger) (*Neo4jOntology, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pool := cfg.MaxPoolSize
	if pool <= 0 {
		pool = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = pool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	d := &driverRunner{driver: driver, database: cfg.Database}
	return &Neo4jOntology{
		runner: d,
		close:  driver.Close,
		log:    logger.OrNop(log).Named("ontology"),
	}, nil
}

// CoHyponyms implements ports.Ontology.
func (o *Neo4jOntology) CoHyponyms(ctx context.Context, term string) ([]string, error) {
	key := lemmaKey(term)
	if key == "" {
		return nil, nil
	}
	records, err := o.runner.read(ctx, coHyponymQuery, map[string]any{"term": key})
	if err != nil {
		return nil, fmt.Errorf("neo4j co-hyponyms of %q: %w", term, err)
	}

	names := make([]string, 0, len(records))
	for _, rec := range records {
		name, _, err := neo4j.GetRecordValue[string](rec, "name")
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return siblings(term, names), nil
}

// Import upserts synsets into the graph. Lemma rank follows list order
// offset by the synset's position, so earlier synsets are primary senses.
func (o *Neo4jOntology) Import(ctx context.Context, synsets []Synset) error {
	rows := make([]map[string]any, 0, len(synsets))
	for i, s := range synsets {
		lemmas := make([]any, 0, len(s.Lemmas))
		for _, l := range s.Lemmas {
			lemmas = append(lemmas, lemmaKey(l))
		}
		hypernyms := make([]any, 0, len(s.Hypernyms))
		for _, h := range s.Hypernyms {
			hypernyms = append(hypernyms, h)
		}
		rows = append(rows, map[string]any{
			"id":        s.ID,
			"rank":      i * 1000,
			"lemmas":    lemmas,
			"hypernyms": hypernyms,
		})
	}
	if err := o.runner.write(ctx, importQuery, map[string]any{"synsets": rows}); err != nil {
		return fmt.Errorf("neo4j import: %w", err)
	}
	logger.OrNop(o.log).Info("ontology imported", zap.Int("synsets", len(synsets)))
	return nil
}

// Close releases the driver.
func (o *Neo4jOntology) Close(ctx context.Context) error {
	if o.close == nil {
		return nil
	}
	return o.close(ctx)
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: d.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func (d *driverRunner) write(ctx context.Context, cypher string, params map[string]any) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}
