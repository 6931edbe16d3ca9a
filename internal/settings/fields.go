package settings

// Descriptions double as the "field should be" hint in syntax errors.
const (
	descrHost       = "Hostname or IP address"
	descrHostname   = "Hostname (letters, digits and hyphens)"
	descrIPv4       = "IPv4 address"
	descrIPv4If     = "IPv4 address with prefix length, e.g. 10.0.0.1/24"
	descrIPv6If     = "IPv6 address with prefix length"
	descrIPv4Net    = "IPv4 network, e.g. 10.0.0.0/16"
	descrVLANID     = "Numeric 802.1Q VLAN ID, 1-4095"
	descrVLANName   = "Max 31 characters: letters, digits, underscores and hyphens"
	descrVNI        = "VXLAN Network Identifier, 1-16777215"
	descrIfName     = "Interface name, e.g. Ethernet1 or Port-Channel1"
	descrGroupName  = "Group name: letters, digits, underscores and hyphens"
	descrASN        = "BGP autonomous system number, 1-4294967295"
	descrRT         = "Route target, e.g. 1:100 or 10.0.0.1:100"
	descrVRFName    = "VRF name: letters, digits, underscores and hyphens"
	descrMTU        = "MTU in bytes, 68-9214"
	descrIfClass    = "One of: downlink, fabric, custom, port_template_*"
	descrRouteMap   = "Route-map or prefix-list name"
	descrFreeString = "Free text"
)

const (
	reVLANName  = `^[a-zA-Z0-9_-]{1,31}$`
	reIfName    = `^[a-zA-Z0-9/.:_-]+$`
	reGroupName = `^[a-zA-Z0-9_-]{1,63}$`
	reRT        = `^([0-9]{1,10}|[0-9.]{7,15}):[0-9]{1,10}$`
	reVRFName   = `^[a-zA-Z0-9_-]{1,64}$`
	reIfClass   = `^(downlink|fabric|custom|port_template_[a-zA-Z0-9_]+)$`
	rePolicy    = `^[a-zA-Z0-9_.-]{1,63}$`
)

func hostList(name string) *Field {
	return withDefault(listField(name, "List of servers",
		mapField("", "Server entry",
			required(strField("host", descrHost, validHost)),
		)), emptyList)
}

func groupList(name string) *Field {
	return listField(name, "List of group names", strField("", descrGroupName, matches(reGroupName)))
}

func deviceList(name string) *Field {
	return listField(name, "List of hostnames", strField("", descrHostname, validHostname))
}

func tagList() *Field {
	return listField("tags", "List of tags", strField("", descrFreeString, nil))
}

func vxlanField() *Field {
	return mapField("", "VXLAN definition",
		strField("description", descrFreeString, nil),
		required(intField("vni", descrVNI, intRange(1, 16777215))),
		strField("vrf", descrVRFName, matches(reVRFName)),
		required(intField("vlan_id", descrVLANID, intRange(1, 4095))),
		required(strField("vlan_name", descrVLANName, matches(reVLANName))),
		strField("ipv4_gw", descrIPv4If, ipv4Interface),
		listField("ipv4_secondaries", "List of IPv4 interfaces", strField("", descrIPv4If, ipv4Interface)),
		strField("ipv6_gw", descrIPv6If, ipv6Interface),
		listField("dhcp_relays", "List of DHCP relay servers",
			mapField("", "DHCP relay", required(strField("host", descrHost, validHost)))),
		intField("mtu", descrMTU, intRange(68, 9214)),
		strField("acl_ipv4_in", descrRouteMap, matches(rePolicy)),
		strField("acl_ipv4_out", descrRouteMap, matches(rePolicy)),
		strField("cli_append_str", descrFreeString, nil),
		groupList("groups"),
		deviceList("devices"),
		tagList(),
	)
}

func interfaceField() *Field {
	return mapField("", "Interface definition",
		required(strField("name", descrIfName, matches(reIfName))),
		required(strField("ifclass", descrIfClass, matches(reIfClass))),
		strField("config", descrFreeString, nil),
		strField("description", descrFreeString, nil),
		boolField("enabled"),
		boolField("redundant_link"),
		boolField("bpdu_filter"),
		&Field{Name: "untagged_vlan", Kind: KindNull, Description: "VLAN name or VLAN ID", Nullable: true},
		listField("tagged_vlan_list", "List of VLAN names or VLAN IDs",
			&Field{Kind: KindNull, Description: "VLAN name or VLAN ID"}),
		intField("aggregate_id", "Port-channel number", intRange(1, 65535)),
		intField("mtu", descrMTU, intRange(68, 9214)),
		intField("metric", "Routing metric", intRange(0, 65535)),
		strField("cli_append_str", descrFreeString, nil),
		tagList(),
	)
}

func vrfField() *Field {
	return mapField("", "VRF definition",
		required(strField("name", descrVRFName, matches(reVRFName))),
		intField("vrf_id", "VRF ID, 1-65535", intRange(1, 65535)),
		listField("import_route_targets", "List of route targets", strField("", descrRT, matches(reRT))),
		listField("export_route_targets", "List of route targets", strField("", descrRT, matches(reRT))),
		strField("import_policy", descrRouteMap, matches(rePolicy)),
		strField("export_policy", descrRouteMap, matches(rePolicy)),
		groupList("groups"),
		deviceList("devices"),
	)
}

func staticRouteField(addrCheck Check, descr string) *Field {
	return mapField("", "Static route",
		required(strField("destination", "Destination network", nil)),
		strField("nexthop", descr, addrCheck),
		strField("interface", descrIfName, matches(reIfName)),
		strField("name", descrFreeString, nil),
		strField("cli_append_str", descrFreeString, nil),
	)
}

func bgpNeighborField(addrCheck Check, descr string) *Field {
	return mapField("", "BGP neighbor",
		required(strField("peer_ip", descr, addrCheck)),
		required(intField("peer_as", descrASN, intRange(1, 4294967295))),
		strField("route_map_in", descrRouteMap, matches(rePolicy)),
		strField("route_map_out", descrRouteMap, matches(rePolicy)),
		strField("description", descrFreeString, nil),
		strField("update_source", descrIfName, matches(reIfName)),
		boolField("bfd"),
		boolField("graceful_restart"),
		boolField("next_hop_self"),
		strField("auth_string", descrFreeString, nil),
		strField("cli_append_str", descrFreeString, nil),
	)
}

// RootSchema describes a fully merged device or fleet settings tree
func RootSchema() *Schema {
	return NewSchema(
		strField("cli_prepend_str", descrFreeString, nil),
		strField("cli_append_str", descrFreeString, nil),
		strField("domain_name", "DNS domain name", validHostname),
		hostList("ntp_servers"),
		hostList("snmp_servers"),
		hostList("dns_servers"),
		hostList("syslog_servers"),
		hostList("radius_servers"),
		hostList("dhcp_relays"),
		withDefault(listField("flow_collectors", "List of flow collectors",
			mapField("", "Flow collector",
				required(strField("host", descrHost, validHost)),
				intField("port", "UDP port, 1-65535", intRange(1, 65535)),
			)), emptyList),
		mapField("underlay", "Underlay addressing",
			strField("infra_lo_net", descrIPv4Net, ipv4Network),
			strField("infra_link_net", descrIPv4Net, ipv4Network),
			strField("mgmt_lo_net", descrIPv4Net, ipv4Network),
		),
		mapField("internal_vlans", "Range of VLANs reserved for internal use",
			required(intField("vlan_id_low", descrVLANID, intRange(1, 4095))),
			required(intField("vlan_id_high", descrVLANID, intRange(1, 4095))),
			strField("allocation_order", "ascending or descending", oneOf("ascending", "descending")),
		),
		intField("dot1x_fail_vlan", descrVLANID, intRange(1, 4095)),
		withDefault(boolField("dot1x_multi_host"), func() Value { return Bool(false) }),
		withDefault(listField("evpn_peers", "List of EVPN peers",
			mapField("", "EVPN peer", required(strField("hostname", descrHostname, validHostname))),
		), emptyList),
		withDefault(listField("interfaces", "List of interfaces", interfaceField()), emptyList),
		withDefault(listField("vrfs", "List of VRFs", vrfField()), emptyList),
		withDefault(dictField("vxlans", "Mapping of VXLAN name to definition", vxlanField()), emptyMap),
		mapField("extroute_static", "External static routes",
			listField("vrfs", "Per-VRF static routes", mapField("", "VRF static routes",
				required(strField("name", descrVRFName, matches(reVRFName))),
				listField("ipv4", "IPv4 static routes", staticRouteField(ipv4Address, descrIPv4)),
				listField("ipv6", "IPv6 static routes", staticRouteField(ipv6Address, "IPv6 address")),
				groupList("groups"),
				deviceList("devices"),
			)),
		),
		mapField("extroute_ospfv3", "External OSPFv3 routing",
			listField("vrfs", "Per-VRF OSPFv3 settings", mapField("", "VRF OSPFv3 settings",
				required(strField("name", descrVRFName, matches(reVRFName))),
				strField("ipv4_redist_routefilter", descrRouteMap, matches(rePolicy)),
				strField("ipv6_redist_routefilter", descrRouteMap, matches(rePolicy)),
			)),
		),
		mapField("extroute_bgp", "External BGP routing",
			listField("vrfs", "Per-VRF BGP settings", mapField("", "VRF BGP settings",
				required(strField("name", descrVRFName, matches(reVRFName))),
				required(intField("local_as", descrASN, intRange(1, 4294967295))),
				listField("neighbor_v4", "IPv4 BGP neighbors", bgpNeighborField(ipv4Address, descrIPv4)),
				listField("neighbor_v6", "IPv6 BGP neighbors", bgpNeighborField(ipv6Address, "IPv6 address")),
				strField("cli_append_str", descrFreeString, nil),
			)),
		),
		withDefault(listField("users", "List of local users", mapField("", "Local user",
			required(strField("username", "Username", matches(`^[a-z_][a-z0-9_-]{0,31}$`))),
			strField("ssh_key", "SSH public key", nil),
			intField("uid", "Numeric user ID", intRange(0, 65535)),
			strField("password_hash_arista", "Password hash", nil),
			strField("password_hash_cisco", "Password hash", nil),
			strField("password_hash_juniper", "Password hash", nil),
			strField("permission_arista", "Role name", nil),
			strField("permission_nxos", "Role name", nil),
		)), emptyList),
	)
}

// GroupsSchema describes global/groups.yml
func GroupsSchema() *Schema {
	return NewSchema(
		withDefault(listField("groups", "List of group definitions",
			mapField("", "Group wrapper",
				required(mapField("group", "Group definition",
					required(strField("name", descrGroupName, matches(reGroupName))),
					required(strField("regex", "Regular expression matching hostnames", validRegex)),
					intField("group_priority", "Priority among overlapping groups", intRange(0, 100)),
				)),
			)), emptyList),
	)
}
