package sqldb

// Statements are written to run unchanged on MySQL and SQLite:
// '?' placeholders, no auto-increment, no upserts. The /*binary*/ marker on
// text key columns is replaced with the driver's collation clause (see binaryText).

const binaryMarker = "/*binary*/"

var schemaSQL = []string{`
CREATE TABLE IF NOT EXISTS kpi_runs (
  run_id                 VARCHAR(36)  NOT NULL PRIMARY KEY,
  seq                    INTEGER      NOT NULL UNIQUE,
  generated_at           VARCHAR(32)  NOT NULL,
  sources                TEXT         NOT NULL,
  rows_total             INTEGER      NOT NULL,
  missing_rows           INTEGER      NOT NULL,
  missing_nightly_rate   INTEGER      NOT NULL,
  missing_lead_time      INTEGER      NOT NULL,
  missing_length_of_stay INTEGER      NOT NULL,
  series_index           MEDIUMTEXT   NOT NULL,
  booking_windows        MEDIUMTEXT   NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS kpi_points (
  run_id          VARCHAR(36)  NOT NULL,
  kpi             VARCHAR(64)  /*binary*/ NOT NULL,
  dimension_label VARCHAR(32)  NOT NULL,
  month           CHAR(7)      NOT NULL,
  dimension       VARCHAR(191) /*binary*/ NOT NULL,
  value           DOUBLE,
  PRIMARY KEY (run_id, kpi, month, dimension)
)`, `
CREATE TABLE IF NOT EXISTS kpi_amenities (
  run_id        VARCHAR(36) NOT NULL,
  month         CHAR(7)     NOT NULL,
  category      VARCHAR(16) NOT NULL,
  revenue       DOUBLE      NOT NULL,
  listings      INTEGER     NOT NULL,
  rnk           INTEGER     NOT NULL,
  revenue_share DOUBLE,
  listing_share DOUBLE,
  PRIMARY KEY (run_id, month, category)
)`,
}

const insertRunSQL = `
INSERT INTO kpi_runs
  (run_id, seq, generated_at, sources, rows_total, missing_rows, missing_nightly_rate,
   missing_lead_time, missing_length_of_stay, series_index, booking_windows)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Runs are numbered inside the saving transaction; the UNIQUE constraint
// rejects a concurrent writer that read the same maximum.
const nextSeqSQL = `SELECT COALESCE(MAX(seq), 0) + 1 FROM kpi_runs`

const insertPointSQL = `
INSERT INTO kpi_points (run_id, kpi, dimension_label, month, dimension, value)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertAmenitySQL = `
INSERT INTO kpi_amenities
  (run_id, month, category, revenue, listings, rnk, revenue_share, listing_share)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Save order, not generated_at: two runs can share a timestamp.
const latestRunIDSQL = `
SELECT run_id FROM kpi_runs
ORDER BY seq DESC
LIMIT 1
`

const getRunSQL = `
SELECT run_id, generated_at, sources, rows_total, missing_rows, missing_nightly_rate,
       missing_lead_time, missing_length_of_stay, series_index, booking_windows
FROM kpi_runs
WHERE run_id = ?
`

const listPointsSQL = `
SELECT kpi, month, dimension, value
FROM kpi_points
WHERE run_id = ?
ORDER BY kpi, month, dimension
`

// Category order within equal ranks follows the stable category order.
const listAmenitiesSQL = `
SELECT month, category, revenue, listings, rnk, revenue_share, listing_share
FROM kpi_amenities
WHERE run_id = ?
ORDER BY month, rnk,
  CASE category WHEN 'Pool' THEN 0 WHEN 'Hot_tub' THEN 1 WHEN 'Both' THEN 2 ELSE 3 END
`

// Source tables carry no row order of their own; sort on the key and the
// measures so the first-wins dedupe picks the same row every run.
const selectListingsSQL = `
SELECT listing_id, month, city, host_type, revenue, openness, occupancy,
       nightly_rate, lead_time, length_of_stay
FROM %s
ORDER BY listing_id, month, revenue, openness, occupancy
`

const selectAmenitiesSQL = `
SELECT listing_id, pool, hot_tub
FROM %s
ORDER BY listing_id
`

const probeColumnsSQL = `SELECT * FROM %s LIMIT 0`
