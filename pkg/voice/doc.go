// Package voice defines the conversation engine interface for concierge.
//
// The engine is a black box that owns the hard real-time work: audio
// transport, voice activity detection, turn taking, streaming transcription,
// token streaming from the model and speech synthesis. Bots interact with it
// through the Pipeline interface: register tools, set callbacks, start it,
// and answer tool calls as they arrive.
//
// Implementations live in subpackages (see voice/bundled) and register
// themselves with Register in an init function.
package voice
