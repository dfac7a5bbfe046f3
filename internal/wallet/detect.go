package wallet

// ProbeKind is the outcome of provider detection.
type ProbeKind int

const (
	ProbeNotFound ProbeKind = iota
	ProbeFound
	ProbeAmbiguous
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeFound:
		return "found"
	case ProbeAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// ProbeResult holds the detected handle. For ProbeAmbiguous, Provider is the
// first candidate in host order and Candidates lists all of them.
type ProbeResult struct {
	Kind       ProbeKind
	Provider   InjectedProvider
	Candidates []InjectedProvider
}

// Probe looks for provider in host.
func Probe(host Host, provider WalletProvider) ProbeResult {
	switch provider {
	case ProviderKaikas:
		if host.Klaytn != nil && host.Klaytn.Markers().IsKaikas {
			return ProbeResult{Kind: ProbeFound, Provider: host.Klaytn, Candidates: []InjectedProvider{host.Klaytn}}
		}
	case ProviderMetaMask:
		return resolve(metaMaskCandidates(host))
	}
	return ProbeResult{Kind: ProbeNotFound}
}

// metaMaskCandidates prefers the providers list over the top-level slot,
// which usually proxies one of the listed entries. Phantom sets isMetaMask
// too and is excluded.
func metaMaskCandidates(host Host) []InjectedProvider {
	pool := host.EthereumProviders
	if len(pool) == 0 && host.Ethereum != nil {
		pool = []InjectedProvider{host.Ethereum}
	}
	var out []InjectedProvider
	for _, p := range pool {
		if p == nil {
			continue
		}
		m := p.Markers()
		if m.IsMetaMask && !m.IsPhantom {
			out = append(out, p)
		}
	}
	return out
}

func resolve(candidates []InjectedProvider) ProbeResult {
	switch len(candidates) {
	case 0:
		return ProbeResult{Kind: ProbeNotFound}
	case 1:
		return ProbeResult{Kind: ProbeFound, Provider: candidates[0], Candidates: candidates}
	}

	// Several wallets claim isMetaMask; keep those that claim nothing else.
	var exact []InjectedProvider
	for _, p := range candidates {
		m := p.Markers()
		if !m.IsKaikas && !m.IsCoinbaseWallet && !m.IsBraveWallet {
			exact = append(exact, p)
		}
	}
	if len(exact) == 1 {
		return ProbeResult{Kind: ProbeFound, Provider: exact[0], Candidates: candidates}
	}
	return ProbeResult{Kind: ProbeAmbiguous, Provider: candidates[0], Candidates: candidates}
}
