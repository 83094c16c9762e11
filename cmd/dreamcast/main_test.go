package main

import "testing"

func TestParseOptionsDefaults(t *testing.T) {
	opt, err := parseOptions(nil)
	if err != nil {
		t.Fatalf("parseOptions(nil) error = %v", err)
	}
	want := defaultOptions()
	if opt != want {
		t.Fatalf("parseOptions(nil) = %+v, want defaults %+v", opt, want)
	}
}

func TestParseOptionsOverridesDefaults(t *testing.T) {
	opt, err := parseOptions([]string{"scale=3", "controllers=2", "pal=true", "log=debug"})
	if err != nil {
		t.Fatalf("parseOptions error = %v", err)
	}
	if opt.scale != 3 || opt.controllers != 2 || !opt.pal {
		t.Fatalf("parseOptions = %+v, want scale=3 controllers=2 pal=true", opt)
	}
}

func TestParseOptionsParsesConfigPath(t *testing.T) {
	opt, err := parseOptions([]string{"config=profile.cfg"})
	if err != nil {
		t.Fatalf("parseOptions error = %v", err)
	}
	if opt.configPath != "profile.cfg" {
		t.Fatalf("parseOptions config path = %q, want %q", opt.configPath, "profile.cfg")
	}
}

func TestParseOptionsRejectsUnknownOption(t *testing.T) {
	if _, err := parseOptions([]string{"bogus=1"}); err == nil {
		t.Fatalf("parseOptions with an unrecognized option should have errored")
	}
}

func TestParseOptionsRejectsMalformedOption(t *testing.T) {
	if _, err := parseOptions([]string{"no-equals-sign"}); err == nil {
		t.Fatalf("parseOptions with a malformed option should have errored")
	}
}

func TestParseSeverityRejectsUnknownLevel(t *testing.T) {
	if _, ok := parseSeverity("verbose"); ok {
		t.Fatalf("parseSeverity(\"verbose\") should report ok=false")
	}
}
