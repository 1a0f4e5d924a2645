// Package cars serves the car management web app: a filterable table over one
// SQLite table with add, edit and delete forms.
package cars
