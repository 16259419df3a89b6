package driver

var IndexQueries = []string{
	"CREATE INDEX ON :Symptom(id);",
	"CREATE INDEX ON :Disease(id);",
	"CREATE INDEX ON :Rule(id);",
	"CREATE INDEX ON :Diagnosis(id);",
	"CREATE INDEX ON :Diagnosis(user_id);",
	"CREATE INDEX ON :Diagnosis(created_at);",
}

const (
	PingQuery = `RETURN 1 AS ok`

	ActiveSymptomsQuery = `
		MATCH (s:Symptom)
		WHERE s.active = true
		RETURN s.id AS id, s.code AS code, s.name AS name, s.category AS category,
			s.description AS description, s.mb AS mb, s.md AS md
		ORDER BY code, id
	`

	ActiveDiseasesQuery = `
		MATCH (d:Disease)
		WHERE d.active = true
		RETURN d.id AS id, d.code AS code, d.name AS name,
			d.description AS description, d.severity AS severity
		ORDER BY code, id
	`

	ActiveRulesQuery = `
		MATCH (r:Rule)-[:CONCLUDES]->(d:Disease)
		WHERE r.active = true
		OPTIONAL MATCH (r)-[req:REQUIRES]->(s:Symptom)
		WITH r, d, req, s
		ORDER BY req.position
		WITH r, d, collect(s.id) AS symptom_ids
		RETURN r.id AS id, r.code AS code, d.id AS disease_id,
			r.confidence_level AS confidence_level,
			r.min_symptom_match AS min_symptom_match,
			symptom_ids
		ORDER BY id
	`

	ClearKnowledgeQuery = `
		MATCH (n)
		WHERE n:Symptom OR n:Disease OR n:Rule
		DETACH DELETE n
	`

	SeedDiseasesQuery = `
		UNWIND $diseases AS d
		CREATE (:Disease {
			id: d.id, code: d.code, name: d.name,
			description: d.description, severity: d.severity, active: d.active
		})
	`

	SeedSymptomsQuery = `
		UNWIND $symptoms AS s
		CREATE (:Symptom {
			id: s.id, code: s.code, name: s.name, category: s.category,
			description: s.description, mb: s.mb, md: s.md, active: s.active
		})
	`

	SeedRulesQuery = `
		UNWIND $rules AS r
		MATCH (d:Disease {id: r.disease_id})
		CREATE (rule:Rule {
			id: r.id, code: r.code, confidence_level: r.confidence_level,
			min_symptom_match: r.min_symptom_match, active: r.active
		})-[:CONCLUDES]->(d)
		WITH rule, r
		UNWIND range(0, size(r.symptom_ids) - 1) AS i
		MATCH (s:Symptom {id: r.symptom_ids[i]})
		CREATE (rule)-[:REQUIRES {position: i}]->(s)
	`

	SaveDiagnosisQuery = `
		CREATE (h:Diagnosis {
			id: $id, user_id: $user_id,
			disease_id: $disease_id, disease_code: $disease_code, disease_name: $disease_name,
			symptom_ids: $symptom_ids, certainty: $certainty,
			final_cf: $final_cf, certainty_level: $certainty_level, method: $method,
			results: $results, solution: $solution, ip_address: $ip_address,
			created_at: $created_at, expires_at: $expires_at
		})
		RETURN h.id AS id
	`

	GetDiagnosisQuery = `
		MATCH (h:Diagnosis {id: $id})
		RETURN properties(h) AS h
	`

	CountDiagnosesQuery = `
		MATCH (h:Diagnosis {user_id: $user_id})
		WHERE h.expires_at = 0 OR h.expires_at > $now
		RETURN count(h) AS total
	`

	ListDiagnosesQuery = `
		MATCH (h:Diagnosis {user_id: $user_id})
		WHERE h.expires_at = 0 OR h.expires_at > $now
		RETURN properties(h) AS h
		ORDER BY h.created_at DESC, h.id DESC
		SKIP $skip LIMIT $limit
	`

	CountSinceQuery = `
		MATCH (h:Diagnosis {user_id: $user_id})
		WHERE h.created_at >= $since
		RETURN count(h) AS total
	`

	RecentByUserQuery = `
		MATCH (h:Diagnosis {user_id: $user_id})
		WHERE h.created_at >= $since
		RETURN properties(h) AS h
		ORDER BY h.created_at DESC, h.id DESC
	`

	DeleteBeforeQuery = `
		MATCH (h:Diagnosis)
		WHERE h.created_at < $cutoff
		DETACH DELETE h
		RETURN count(*) AS deleted
	`
)
