package mockcli

const subscriptionID = "12345678-1234-1234-1234-123456789012"

const accountID = "/subscriptions/" + subscriptionID + "/resourceGroups/test-rg/providers/Microsoft.NetApp/netAppAccounts/test-account"

// DefaultRules is the canned table for the NetApp Files sample scripts.
// Sub-resource patterns precede their parent resource's catch-all.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "subscription-id",
			Exact:  "account show --query id -o tsv",
			Stdout: subscriptionID + "\n",
		},
		{
			Name:     "account-ad-list",
			Contains: []string{"netappfiles account", "ad list"},
			Stdout: `[
  {
    "activeDirectoryId": "test-ad-connection",
    "domain": "contoso.com",
    "dns": "10.0.0.4,10.0.0.5",
    "username": "admin@contoso.com",
    "smbServerName": "anf-smb-server",
    "organizationalUnit": "OU=ANF,DC=contoso,DC=com",
    "aesEncryption": true,
    "ldapSigning": true,
    "ldapOverTLS": true,
    "allowLocalNfsUsersWithLdap": false
  }
]
`,
		},
		{
			Name:     "account-show",
			Contains: []string{"netappfiles account", "show"},
			Stdout: `{
  "name": "test-account",
  "location": "eastus",
  "activeDirectories": ["test-ad-connection"]
}
`,
		},
		{
			Name:     "account-create",
			Contains: []string{"netappfiles account", "create"},
			Stdout:   `{"id": "` + accountID + `"}` + "\n",
		},
		{Name: "account", Contains: []string{"netappfiles account"}},
		{
			Name:     "pool-show",
			Contains: []string{"netappfiles pool", "show"},
			Stdout: `{
  "name": "test-pool",
  "size": 4398046511104,
  "serviceLevel": "Premium"
}
`,
		},
		{
			Name:     "pool-create",
			Contains: []string{"netappfiles pool", "create"},
			Stdout:   `{"id": "` + accountID + `/capacityPools/test-pool"}` + "\n",
		},
		{Name: "pool", Contains: []string{"netappfiles pool"}},
		{
			Name:     "volume-show",
			Contains: []string{"netappfiles volume", "show"},
			Stdout: `{
  "name": "test-volume",
  "protocolTypes": ["NFSv4.1", "CIFS"],
  "kerberosEnabled": true,
  "smbEncryption": true,
  "smbAccessBasedEnumeration": false,
  "smbNonBrowsable": false,
  "unixPermissions": "0755",
  "hasRootAccess": true,
  "exportPolicy": {
    "rules": [
      {
        "allowedClients": "0.0.0.0/0",
        "nfsv3": false,
        "nfsv41": true,
        "kerberos5ReadOnly": true,
        "kerberos5ReadWrite": true
      }
    ]
  }
}
`,
		},
		{
			Name:     "volume-create",
			Contains: []string{"netappfiles volume", "create"},
			Stdout:   `{"id": "` + accountID + `/capacityPools/test-pool/volumes/test-volume"}` + "\n",
		},
		{Name: "volume", Contains: []string{"netappfiles volume"}},
		{
			Name:     "advisor-recommendations",
			Contains: []string{"advisor recommendation"},
			Stdout: `[
  {
    "id": "advisor-rec-1",
    "type": "Microsoft.Advisor/recommendations",
    "category": "Performance",
    "impact": "Medium",
    "shortDescription": {"solution": "Optimize NetApp Files performance"}
  }
]
`,
		},
		{
			Name:     "resource-list",
			Contains: []string{"resource list"},
			Stdout: `[
  {
    "id": "` + accountID + `",
    "name": "test-account",
    "type": "Microsoft.NetApp/netAppAccounts",
    "location": "eastus"
  }
]
`,
		},
		{
			Name:   "version",
			Exact:  "--version",
			Stdout: "azure-cli 2.56.0\ncore 2.56.0\ntelemetry 1.1.0\n",
		},
	}
}
