package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing data with external
// listeners (HTTP server / stats stream).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------
	// Broadcast pushes a payload to connected listeners.
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
