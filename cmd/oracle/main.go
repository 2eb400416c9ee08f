// Oracle is a draft-assistant relay for fantasy football front ends.
//
// It accepts assist requests, reshapes them into prompts for a hosted
// conversational AI service, and returns answers either as a live
// pass-through stream or as one buffered result.
//
// Usage:
//
//	# Start the server with default configuration
//	oracle serve
//
//	# Start with a custom configuration file
//	oracle serve --config /path/to/config.yaml
//
//	# Show version information
//	oracle version
package main

func main() {
	Execute()
}
