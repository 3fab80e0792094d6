package lookup

// TCPServices is the vocabulary of named TCP ports accepted after eq, neq,
// lt, gt and range. Aliases follow their canonical name.
var TCPServices = NewTable([]Entry{
	{"echo", 7},
	{"discard", 9},
	{"daytime", 13},
	{"chargen", 19},
	{"ftp-data", 20},
	{"ftp", 21},
	{"ssh", 22},
	{"telnet", 23},
	{"smtp", 25},
	{"time", 37},
	{"whois", 43},
	{"tacacs", 49},
	{"domain", 53},
	{"gopher", 70},
	{"finger", 79},
	{"www", 80},
	{"http", 80},
	{"hostname", 101},
	{"pop2", 109},
	{"pop3", 110},
	{"sunrpc", 111},
	{"ident", 113},
	{"nntp", 119},
	{"netbios-ssn", 139},
	{"imap4", 143},
	{"bgp", 179},
	{"irc", 194},
	{"ldap", 389},
	{"https", 443},
	{"pim-auto-rp", 496},
	{"exec", 512},
	{"login", 513},
	{"cmd", 514},
	{"rsh", 514},
	{"lpd", 515},
	{"talk", 517},
	{"uucp", 540},
	{"klogin", 543},
	{"kshell", 544},
	{"rtsp", 554},
	{"ldaps", 636},
	{"lotusnotes", 1352},
	{"citrix-ica", 1494},
	{"sqlnet", 1521},
	{"pptp", 1723},
	{"h323", 1720},
	{"nfs", 2049},
	{"ctiqbe", 2748},
	{"sip", 5060},
	{"aol", 5190},
	{"pcanywhere-data", 5631},
})

// UDPServices is the vocabulary of named UDP ports.
var UDPServices = NewTable([]Entry{
	{"echo", 7},
	{"discard", 9},
	{"time", 37},
	{"nameserver", 42},
	{"tacacs", 49},
	{"domain", 53},
	{"bootps", 67},
	{"bootpc", 68},
	{"tftp", 69},
	{"www", 80},
	{"sunrpc", 111},
	{"ntp", 123},
	{"netbios-ns", 137},
	{"netbios-dgm", 138},
	{"netbios-ss", 139},
	{"snmp", 161},
	{"snmptrap", 162},
	{"xdmcp", 177},
	{"dnsix", 195},
	{"mobile-ip", 434},
	{"pim-auto-rp", 496},
	{"isakmp", 500},
	{"biff", 512},
	{"who", 513},
	{"syslog", 514},
	{"talk", 517},
	{"rip", 520},
	{"radius", 1645},
	{"radius-acct", 1646},
	{"nfs", 2049},
	{"vxlan", 4789},
	{"sip", 5060},
	{"secureid-udp", 5510},
	{"pcanywhere-status", 5632},
})

// ICMPTypes maps ICMPv4 message names to type numbers (RFC 792 and successors).
var ICMPTypes = NewTable([]Entry{
	{"echo-reply", 0},
	{"unreachable", 3},
	{"source-quench", 4},
	{"redirect", 5},
	{"alternate-address", 6},
	{"echo", 8},
	{"router-advertisement", 9},
	{"router-solicitation", 10},
	{"time-exceeded", 11},
	{"parameter-problem", 12},
	{"timestamp-request", 13},
	{"timestamp-reply", 14},
	{"information-request", 15},
	{"information-reply", 16},
	{"mask-request", 17},
	{"mask-reply", 18},
	{"traceroute", 30},
	{"conversion-error", 31},
	{"mobile-redirect", 32},
})

// ICMPv6Types maps ICMPv6 message names to type numbers (RFC 4443, 4861).
var ICMPv6Types = NewTable([]Entry{
	{"unreachable", 1},
	{"packet-too-big", 2},
	{"time-exceeded", 3},
	{"parameter-problem", 4},
	{"echo", 128},
	{"echo-reply", 129},
	{"membership-query", 130},
	{"membership-report", 131},
	{"membership-reduction", 132},
	{"router-solicitation", 133},
	{"router-advertisement", 134},
	{"neighbor-solicitation", 135},
	{"neighbor-advertisement", 136},
	{"redirect", 137},
	{"router-renumbering", 138},
})

// Protocols maps IP protocol names other than tcp, udp, icmp and icmpv6
// to their IANA numbers.
var Protocols = NewTable([]Entry{
	{"igmp", 2},
	{"ipinip", 4},
	{"igrp", 9},
	{"gre", 47},
	{"esp", 50},
	{"ipsec", 50},
	{"ahp", 51},
	{"eigrp", 88},
	{"ospf", 89},
	{"nos", 94},
	{"pim", 103},
	{"pcp", 108},
	{"sctp", 132},
})
