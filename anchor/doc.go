// Package anchor publishes commitments to applied trust manifests on an
// external transparency medium. Anchoring binds the namespace's local hash
// chain to a public timeline: a rollback or fork of the stored state becomes
// detectable by comparing the chain against the anchored hashes.
//
// EVMAnchor submits a zero-value self-transaction whose calldata carries the
// namespace, manifest version, and canonical manifest hash. Anchoring is
// best-effort by contract: the engine logs failures and never rolls back an
// applied operation over them.
package anchor
