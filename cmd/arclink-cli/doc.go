// Command arclink-cli requests waveforms and metadata from ArcLink
// archive nodes.
//
//	arclink-cli --user me@example.org waveform --net GE --sta APE --cha BHZ \
//	    --start 2010-01-01T00:00:00 --duration 1m --out GE.APE.mseed
//
// Configuration is read from ~/.arclink/cli.yaml and ARCLINK_* variables;
// flags override both.
package main
