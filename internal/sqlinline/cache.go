package sqlinline

const QSelectCacheEntry = `--sql 2b8f4c1e-93d7-4a5e-b0c6-7e1d5f3a9c42
select output, cached_at
from generation_cache
where cache_key = $1::text
limit 1;
`

const QUpsertCacheEntry = `--sql 9d3e6a71-0c5b-4f28-8e14-b6a2c7d90f15
insert into generation_cache (cache_key, output, cached_at)
values ($1::text, $2::jsonb, $3::timestamptz)
on conflict (cache_key) do update set
    output = excluded.output,
    cached_at = excluded.cached_at;
`

const QDeleteExpiredCacheEntries = `--sql 5a7c0e2d-6f41-4b9a-a3d8-1e0c9b7f6a53
delete from generation_cache
where cached_at < $1::timestamptz;
`
