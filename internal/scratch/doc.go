// Package scratch manages per-job working copies of capture audio.
//
// The transcription worker never hands the original capture file to the
// model; it requests a verified scratch copy here and removes it when the
// job resolves, whatever the outcome. A free-space preflight keeps a filling
// scratch disk from corrupting copies mid-write.
package scratch
