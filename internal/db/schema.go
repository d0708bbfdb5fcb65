package db

import "fmt"

// schemaTemplate holds the contract intake schema. The single %d is the
// embedding dimension of the policy index.
const schemaTemplate = `
    -- ==========================================================================
    -- PROCESSED CONTRACTS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS processed_contract SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS sender ON processed_contract TYPE string;
    DEFINE FIELD IF NOT EXISTS subject ON processed_contract TYPE string;
    DEFINE FIELD IF NOT EXISTS source_file ON processed_contract TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON processed_contract TYPE string;
    DEFINE FIELD IF NOT EXISTS route ON processed_contract TYPE string;
    DEFINE FIELD IF NOT EXISTS extracted_data ON processed_contract TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS validation_result ON processed_contract TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS routing_decision ON processed_contract TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON processed_contract TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON processed_contract TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS contract_status ON processed_contract FIELDS status, updated_at;

    -- ==========================================================================
    -- REVIEW QUEUE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS review_item SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS contract_id ON review_item TYPE string;
    DEFINE FIELD IF NOT EXISTS reason ON review_item TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON review_item TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON review_item TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS resolved_at ON review_item TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS review_status ON review_item FIELDS status, created_at;
    DEFINE INDEX IF NOT EXISTS review_contract ON review_item FIELDS contract_id;

    -- ==========================================================================
    -- PROCESSING LOG
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS processing_log SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS contract_id ON processing_log TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS stage ON processing_log TYPE string;
    DEFINE FIELD IF NOT EXISTS message ON processing_log TYPE string;
    DEFINE FIELD IF NOT EXISTS payload ON processing_log TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON processing_log TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS log_contract ON processing_log FIELDS contract_id;
    DEFINE INDEX IF NOT EXISTS log_created ON processing_log FIELDS created_at;

    -- ==========================================================================
    -- POLICY INDEX
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS policy_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source ON policy_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON policy_chunk TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS position ON policy_chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON policy_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON policy_chunk TYPE array<float>;

    DEFINE INDEX IF NOT EXISTS policy_source ON policy_chunk FIELDS source;
    DEFINE INDEX IF NOT EXISTS policy_embedding ON policy_chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

// SchemaSQL renders the schema for the given embedding dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}
