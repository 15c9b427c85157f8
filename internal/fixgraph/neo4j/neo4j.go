package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/buildmend/mend/internal/fixgraph"
)

// Repository implements fixgraph.Repository using Neo4j.
type Repository struct {
	driver neo4j.DriverWithContext
}

// New creates a Neo4j-backed repository.
func New(ctx context.Context, uri, username, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver}, nil
}

func (r *Repository) RecordOutcomes(ctx context.Context, outcomes []fixgraph.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, o := range outcomes {
			rel := "FAILED_BY"
			if o.Fixed {
				rel = "RESOLVED_BY"
			}
			_, err := tx.Run(ctx,
				"MERGE (k:ErrorKind {name: $kind}) "+
					"MERGE (e:Engine {name: $engine}) "+
					"MERGE (k)-[r:"+rel+"]->(e) "+
					"ON CREATE SET r.count = 1 "+
					"ON MATCH SET r.count = r.count + 1",
				map[string]any{"kind": o.Kind, "engine": o.Engine})
			if err != nil {
				return nil, err
			}
			if o.Rule != "" {
				_, err := tx.Run(ctx,
					"MERGE (e:Engine {name: $engine}) "+
						"MERGE (u:Rule {name: $rule}) "+
						"MERGE (e)-[:APPLIES]->(u)",
					map[string]any{"engine": o.Engine, "rule": o.Rule})
				if err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("record outcomes: %w", err)
	}
	return nil
}

func (r *Repository) ResolutionStats(ctx context.Context, kind string) ([]fixgraph.ResolutionStat, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (k:ErrorKind {name: $kind})-[r:RESOLVED_BY]->(e:Engine) "+
				"RETURN e.name AS engine, r.count AS count",
			map[string]any{"kind": kind})
		if err != nil {
			return nil, err
		}

		var stats []fixgraph.ResolutionStat
		for records.Next(ctx) {
			rec := records.Record()
			engine, _ := rec.Get("engine")
			count, _ := rec.Get("count")
			stats = append(stats, fixgraph.ResolutionStat{
				Engine: engine.(string),
				Count:  count.(int64),
			})
		}
		return stats, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("resolution stats: %w", err)
	}

	stats := result.([]fixgraph.ResolutionStat)
	sort.Slice(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats, nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
