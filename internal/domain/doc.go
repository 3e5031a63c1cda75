// Package domain models oceanographic profile data and the nested
// structures the aggregation core produces from it.
//
// # Data Model
//
// One expedition's data forms a data set, identified by an expocode
// (e.g. "74DI20110715"). A data set owns stations: fixed sampling
// positions given as WGS-84 longitude/latitude. At each station one or
// more casts were taken: individual instrument deployments profiling
// the water column. A cast owns depth samples, each with a depth in
// meters and a timestamp, and every depth sample carries zero or more
// measured values (temperature, salinity, oxygen, ...), each tagged
// with a measurement type from an immutable reference set.
//
// All of this is read-only here: the store is populated by an external
// ingest process, and this service only queries and reshapes it.
//
// # Measurement Types
//
// Measurement types are requested by their human-readable label. Labels
// double as SQL column aliases once sanitized to bare alphanumerics
// ("CTD-TMP#1" becomes "CTDTMP1"); the Registry owns that mapping and
// rejects label sets whose aliases collide.
//
// # Crossovers
//
// Two data sets "cross over" when at least one station of each lies
// within a configured surface distance of the other. Crossovers are the
// basis for cross-calibrating expeditions that visited the same patch
// of ocean; the spatial engine computes them from station positions.
package domain
