// Package explorer serves the dataset explorer web app: upload a SQLite file
// or SQL script, browse its tables and download them as CSV.
package explorer
