// Package proposals implements case proposals sent by clients to lawyers.
//
// A client describes a case and addresses it to one lawyer. Only that lawyer
// may accept or decline it. Role checks on the caller happen at the HTTP edge;
// the service checks that the addressee really is a lawyer.
package proposals
