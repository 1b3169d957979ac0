// Package endpoint identifies peers by (IP address, UDP port) and resolves
// hostnames into endpoints.
package endpoint
