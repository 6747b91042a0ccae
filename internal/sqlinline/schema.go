package sqlinline

// QEnsureSchema creates the tables used by the durable cache and the
// credential store. Safe to run on every start.
const QEnsureSchema = `--sql 3f1b7d9a-2c64-4e8b-9a05-d6e2f8c4b1a7
create table if not exists generation_cache (
    cache_key  text primary key,
    output     jsonb not null,
    cached_at  timestamptz not null
);
create index if not exists generation_cache_cached_at_idx on generation_cache (cached_at);
create table if not exists provider_credentials (
    provider   text primary key,
    token      text not null,
    revoked_at timestamptz,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
