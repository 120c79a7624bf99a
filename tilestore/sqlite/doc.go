// Package sqlite implements tilestore.Store on an SQLite database using the
// pure Go modernc.org/sqlite driver. Tiles live in one table keyed by band
// name and block offset, similar to MBTiles and GeoPackage tile tables.
package sqlite
