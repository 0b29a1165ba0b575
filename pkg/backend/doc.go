// Package backend translates an Endpoint and ServerDescriptor into a
// running, healthy model-serving process and, later, tears it down. Each
// transport (local-exec, remote-ssh-exec, local-docker, remote-docker,
// hosted-noop) implements Driver; Dispatcher picks the right one from a
// ProcessEntry's transport field.
package backend
