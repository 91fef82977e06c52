// Package transport notifies off-process co-signers about pending trust
// operations. Notification is fire-and-forget: the workflow stays correct
// without it, co-signers just discover pending operations by polling instead.
//
// HTTPPublisher POSTs the operation record to each co-signer endpoint.
// Endpoints come from an EndpointSource: a static list, or SRV records
// resolved from DNS for deployments where signer hosts register themselves
// under a well-known domain.
package transport
