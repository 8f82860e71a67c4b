// Package jpdata is the Joshua Project data kit. It turns the normalized
// people group, country, and language collections published by the Joshua
// Project API into enriched collections which need no joins to consume, and
// hands them to one or more export formats.
//
// Of principal importance is the enrichment pipeline. Interfaces and the
// generic implementation of each stage live in this package, while the
// collaborators which rely on other software (files, the remote API, DuckDB,
// Pilosa, Kafka, S3) are in sub-packages.
//
// 1. Source
//
//    A jpdata.Source hands out raw records one at a time. It does not massage
//    the data in any way - it may read a JSON document from disk, replay a
//    cached API response, or be a slice built in a test. The Loader stage
//    owns turning those raw records into typed values.
//
// 2. Loader
//
//    The Loader reads each collection into an ordered slice of PeopleGroup,
//    Country, or Language values. Every record keeps all of its source fields
//    so they can be passed through untouched, and gets a typed view of the
//    attributes the pipeline reasons about. A collection which is not a
//    sequence of objects, or an object lacking its identity field, fails the
//    whole run with a MalformedInputError.
//
// 3. Index Builder
//
//    Countries are indexed by ROG3 and languages by ROL3. A repeated code is a
//    DuplicateKeyError unless last-write-wins is explicitly requested.
//
// 4. Joiner
//
//    For each people group the Joiner embeds the matching country and language
//    as country_data and language_data. A code that matches nothing is not an
//    error: the embedded object is null and the record key is tracked so the
//    Integrity Reporter can account for it. The work is spread over a pool of
//    workers, but output order always matches input order.
//
// 5. Subset Filter and Integrity Reporter
//
//    Named subsets (the least-reached subset above all) are derived with
//    predicates over enriched records, and an IntegrityReport summarizes how
//    many foreign keys resolved.
//
// 6. Exporter
//
//    Exporters accept enriched records one at a time for each named dataset.
//    File based exporters stage their output and only make it visible on
//    Commit, so a failed run leaves nothing partial behind.
package jpdata
